package model

import "time"

// TribeStatus is the lifecycle state of a tribe. DISSOLVED is terminal.
type TribeStatus string

const (
	TribeForming   TribeStatus = "FORMING"
	TribeActive    TribeStatus = "ACTIVE"
	TribeAtRisk    TribeStatus = "AT_RISK"
	TribeInactive  TribeStatus = "INACTIVE"
	TribeDissolved TribeStatus = "DISSOLVED"
)

// MembershipStatus tracks a member's standing within a tribe. Rows are never
// reused after REMOVED or LEFT.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipActive   MembershipStatus = "ACTIVE"
	MembershipInactive MembershipStatus = "INACTIVE"
	MembershipRemoved  MembershipStatus = "REMOVED"
	MembershipLeft     MembershipStatus = "LEFT"
)

// MembershipRole distinguishes the tribe creator from ordinary members.
type MembershipRole string

const (
	RoleCreator MembershipRole = "CREATOR"
	RoleMember  MembershipRole = "MEMBER"
)

// MessageType classifies a chat message.
type MessageType string

const (
	MessageText     MessageType = "TEXT"
	MessageImage    MessageType = "IMAGE"
	MessageSystem   MessageType = "SYSTEM"
	MessageAIPrompt MessageType = "AI_PROMPT"
	MessageEvent    MessageType = "EVENT"
)

// ValidMessageType reports whether t is one of the known message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageSystem, MessageAIPrompt, MessageEvent:
		return true
	}
	return false
}

// Tribe is a bounded-size social group with a lifecycle status.
type Tribe struct {
	TribeID        string      `json:"tribeId"`
	Name           string      `json:"name"`
	Status         TribeStatus `json:"status"`
	Private        bool        `json:"private"`
	MaxMembers     int         `json:"maxMembers"`
	MinMembers     int         `json:"minMembers"`
	LastMessageSeq int64       `json:"lastMessageSeq"`
	LastActivityAt time.Time   `json:"lastActivityAt"`
	CreationTime   time.Time   `json:"creationTime"`
}

// Membership is a member's relationship to a tribe. At most one row exists
// per (tribe, member).
type Membership struct {
	TribeID      string           `json:"tribeId"`
	MemberID     string           `json:"memberId"`
	Role         MembershipRole   `json:"role"`
	Status       MembershipStatus `json:"status"`
	JoinedAt     time.Time        `json:"joinedAt"`
	LastActiveAt *time.Time       `json:"lastActiveAt,omitempty"`
}

// Message is an immutable chat message. MemberID is nil for system messages.
// Seq is a server-assigned ordering key, strictly increasing per tribe.
type Message struct {
	MessageID string                 `json:"id"`
	TribeID   string                 `json:"tribeId"`
	MemberID  *string                `json:"userId,omitempty"`
	Content   string                 `json:"content"`
	Type      MessageType            `json:"messageType"`
	Seq       int64                  `json:"seq"`
	SentAt    time.Time              `json:"sentAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Activity is an append-only log entry. MemberID is nil for system activity.
type Activity struct {
	ActivityID   string                 `json:"activityId"`
	TribeID      string                 `json:"tribeId"`
	MemberID     *string                `json:"memberId,omitempty"`
	Type         string                 `json:"type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreationTime time.Time              `json:"creationTime"`
}

// Activity types recorded by this service.
const (
	ActivityMessageSent   = "MESSAGE_SENT"
	ActivityMemberJoined  = "MEMBER_JOINED"
	ActivityMemberLeft    = "MEMBER_LEFT"
	ActivityStatusChanged = "STATUS_CHANGED"
	ActivityEngagement    = "ENGAGEMENT_CREATED"
)

// EngagementType enumerates the prompt kinds the recommender selects among.
// The declaration order is the tie-break order.
type EngagementType string

const (
	EngagementConversationPrompt EngagementType = "CONVERSATION_PROMPT"
	EngagementPollQuestion       EngagementType = "POLL_QUESTION"
	EngagementGroupChallenge     EngagementType = "GROUP_CHALLENGE"
	EngagementActivitySuggestion EngagementType = "ACTIVITY_SUGGESTION"
	EngagementMeetupSuggestion   EngagementType = "MEETUP_SUGGESTION"
)

// EngagementTypes lists all types in tie-break order.
var EngagementTypes = []EngagementType{
	EngagementConversationPrompt,
	EngagementPollQuestion,
	EngagementGroupChallenge,
	EngagementActivitySuggestion,
	EngagementMeetupSuggestion,
}

// EngagementRecord is historical input to the recommender. It is owned by
// the engagement subsystem and only read here.
type EngagementRecord struct {
	EngagementID  string         `json:"engagementId"`
	TribeID       string         `json:"tribeId"`
	Type          EngagementType `json:"type"`
	CreatedAt     time.Time      `json:"createdAt"`
	DeliveredAt   *time.Time     `json:"deliveredAt,omitempty"`
	ResponseCount int            `json:"responseCount"`
}

// ListMessagesRequest captures filters used when listing messages.
// Exactly one of Offset or a cursor (BeforeID/AfterID) pagination mode is
// used; the cursor message itself is excluded from results.
type ListMessagesRequest struct {
	TribeID  string
	Limit    int
	Offset   int
	BeforeID string
	AfterID  string
	Type     *MessageType
	SenderID *string
}
