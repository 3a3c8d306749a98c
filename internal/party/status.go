package party

import "strings"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus int

const (
	// ApplicationUnspecified is the zero value and never persisted.
	ApplicationUnspecified ApplicationStatus = iota
	// ApplicationPending waits for an owner decision.
	ApplicationPending
	// ApplicationAccepted occupies its slot.
	ApplicationAccepted
	// ApplicationRejected was declined, displaced, revoked or closed out.
	ApplicationRejected
	// ApplicationWithdrawn was cancelled by the applicant.
	ApplicationWithdrawn
)

func (s ApplicationStatus) String() string {
	switch s {
	case ApplicationPending:
		return "pending"
	case ApplicationAccepted:
		return "accepted"
	case ApplicationRejected:
		return "rejected"
	case ApplicationWithdrawn:
		return "withdrawn"
	default:
		return "unspecified"
	}
}

// Live reports whether the application still counts against its applicant.
func (s ApplicationStatus) Live() bool {
	return s == ApplicationPending || s == ApplicationAccepted
}

// ApplicationStatusFromLabel converts a stored label into a status.
func ApplicationStatusFromLabel(label string) ApplicationStatus {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "pending":
		return ApplicationPending
	case "accepted":
		return ApplicationAccepted
	case "rejected":
		return ApplicationRejected
	case "withdrawn":
		return ApplicationWithdrawn
	default:
		return ApplicationUnspecified
	}
}

// SlotState is derived from the slot occupant.
type SlotState int

const (
	SlotOpen SlotState = iota
	SlotFilled
)

func (s SlotState) String() string {
	if s == SlotFilled {
		return "filled"
	}
	return "open"
}

// PostStatus is the recruiting state of a post.
type PostStatus int

const (
	PostUnspecified PostStatus = iota
	PostRecruiting
	PostFull
	PostClosed
)

func (s PostStatus) String() string {
	switch s {
	case PostRecruiting:
		return "recruiting"
	case PostFull:
		return "full"
	case PostClosed:
		return "closed"
	default:
		return "unspecified"
	}
}

// PostStatusFromLabel converts a stored label into a post status.
func PostStatusFromLabel(label string) PostStatus {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "recruiting":
		return PostRecruiting
	case "full":
		return PostFull
	case "closed":
		return PostClosed
	default:
		return PostUnspecified
	}
}

// JoinType selects how submissions are admitted.
type JoinType int

const (
	// JoinApproval queues submissions for the owner.
	JoinApproval JoinType = iota
	// JoinFirstCome admits the first submission for an open slot immediately.
	JoinFirstCome
)

func (j JoinType) String() string {
	if j == JoinFirstCome {
		return "first_come"
	}
	return "approval"
}

// JoinTypeFromLabel defaults to JoinApproval for unknown labels.
func JoinTypeFromLabel(label string) JoinType {
	if strings.EqualFold(strings.TrimSpace(label), "first_come") {
		return JoinFirstCome
	}
	return JoinApproval
}

// RejectReason explains why an application ended up rejected.
type RejectReason string

const (
	ReasonNone       RejectReason = ""
	ReasonOwner      RejectReason = "owner"
	ReasonSlotFilled RejectReason = "slot_filled"
	ReasonRevoked    RejectReason = "revoked"
	ReasonPostClosed RejectReason = "post_closed"
)

func (s ApplicationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ApplicationStatus) UnmarshalText(text []byte) error {
	*s = ApplicationStatusFromLabel(string(text))
	return nil
}

func (s SlotState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s PostStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *PostStatus) UnmarshalText(text []byte) error {
	*s = PostStatusFromLabel(string(text))
	return nil
}

func (j JoinType) MarshalText() ([]byte, error) { return []byte(j.String()), nil }

func (j *JoinType) UnmarshalText(text []byte) error {
	*j = JoinTypeFromLabel(string(text))
	return nil
}
