package session

// FlagSet represents the action to take on a flag
type FlagSet int

const (
	FlagUnset FlagSet = iota
	FlagAdd
	FlagRemove
)

// Flags represents standard IMAP message flags
type Flags struct {
	Seen     FlagSet
	Answered FlagSet
	Flagged  FlagSet
	Deleted  FlagSet
	Draft    FlagSet
	// Keywords are added (true) or removed (false) verbatim, so system
	// flags such as `\Seen` may be passed here too.
	Keywords map[string]bool
}
