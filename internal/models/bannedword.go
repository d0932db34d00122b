package models

// MatchMode controls whether a BannedWord matches as a whole word only or
// as a substring anywhere in the checked text.
type MatchMode string

const (
	MatchWhole   MatchMode = "whole"
	MatchPartial MatchMode = "partial"
)

// BannedWord is one entry in the content moderation word list.
type BannedWord struct {
	ID        string
	Phrase    string
	Mode      MatchMode
	AddedBy   string
	CreatedAtMS int64
}
