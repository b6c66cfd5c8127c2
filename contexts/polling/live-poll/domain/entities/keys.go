package entities

import "fmt"

// KeyKind distinguishes the two storage partitions.
type KeyKind int

const (
	// KeyKindPoll addresses the singleton poll record.
	KeyKindPoll KeyKind = iota + 1
	// KeyKindVoter addresses one voter marker of one poll generation.
	KeyKindVoter
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindPoll:
		return "poll"
	case KeyKindVoter:
		return "voter"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// StorageKey is either "the poll" or "voter record for identity X".
// Build it with PollKey or VoterKey; the zero value is invalid.
type StorageKey struct {
	kind     KeyKind
	pollID   string
	identity string
}

func PollKey() StorageKey {
	return StorageKey{kind: KeyKindPoll}
}

func VoterKey(pollID string, identity string) StorageKey {
	return StorageKey{kind: KeyKindVoter, pollID: pollID, identity: identity}
}

func (k StorageKey) Kind() KeyKind { return k.kind }
func (k StorageKey) PollID() string { return k.pollID }
func (k StorageKey) Identity() string { return k.identity }
func (k StorageKey) IsValid() bool { return k.kind == KeyKindPoll || k.kind == KeyKindVoter }
func (k StorageKey) IsPoll() bool { return k.kind == KeyKindPoll }
func (k StorageKey) IsVoter() bool { return k.kind == KeyKindVoter }

// String renders the key inside a namespace, e.g. "livepoll:poll" or
// "livepoll:voter:<poll_id>:<identity>".
func (k StorageKey) String() string {
	return k.Namespaced("livepoll")
}

func (k StorageKey) Namespaced(namespace string) string {
	switch k.kind {
	case KeyKindPoll:
		return namespace + ":poll"
	case KeyKindVoter:
		return namespace + ":voter:" + k.pollID + ":" + k.identity
	default:
		return namespace + ":invalid"
	}
}
