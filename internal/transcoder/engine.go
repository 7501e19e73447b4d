package transcoder

// Element names used in pipeline descriptions, kept here to avoid magic
// strings in the builder.
const (
	ElementDecodeBin = "uridecodebin"
	ElementHLSSink   = "hlssink2"
	EncoderH264      = "x264enc"
	EncoderAAC       = "avenc_aac"
)

// Planner hands out per-attempt profiles. It owns the decision whether an
// attempt may use hardware decoders at all.
type Planner struct {
	base    Profile
	allowHW bool
}

// NewPlanner creates a Planner from the session-wide base profile. With
// allowHW false every attempt runs in software mode.
func NewPlanner(base Profile, allowHW bool) *Planner {
	base.ForceSoftware = false
	return &Planner{base: base, allowHW: allowHW}
}

// Profile returns the profile for an attempt.
func (p *Planner) Profile(forceSoftware bool) Profile {
	prof := p.base
	prof.ForceSoftware = forceSoftware || !p.allowHW
	return prof
}

// HardwareAllowed reports whether hardware decoding may be attempted.
func (p *Planner) HardwareAllowed() bool {
	return p.allowHW
}
