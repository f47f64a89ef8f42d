package app

// Profile describes how one provider's records are validated and scaled.
type Profile struct {
	Provider       string
	DefaultChannel string
	NumericIDs     bool
	RatingScale    int // native maximum: 10 or 5
}

var (
	HostawayProfile = Profile{Provider: "hostaway", DefaultChannel: "Hostaway", NumericIDs: true, RatingScale: 10}
	GoogleProfile   = Profile{Provider: "google", DefaultChannel: "Google", NumericIDs: false, RatingScale: 5}
)
