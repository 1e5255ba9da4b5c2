package model

// SignalShortname is the item shortname of a supply signal.
const SignalShortname = "supply.signal"

// ItemSpec describes an item stack to create on the host side.
type ItemSpec struct {
	Shortname   string `json:"shortname"`
	Amount      int    `json:"amount"`
	SkinID      uint64 `json:"skin_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// NewSignalItem returns a single patrol signal stack with the given skin and display name.
func NewSignalItem(skinID uint64, displayName string) ItemSpec {
	return ItemSpec{
		Shortname:   SignalShortname,
		Amount:      1,
		SkinID:      skinID,
		DisplayName: displayName,
	}
}

// IsSignal reports whether the stack is a supply signal carrying the given skin.
func (s ItemSpec) IsSignal(skinID uint64) bool {
	return s.Shortname == SignalShortname && s.SkinID == skinID
}
