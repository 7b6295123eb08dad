// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents a golf playgroup platform where:
//   - GroupLeaders organize Playgroups of players
//   - Playgroups schedule Sessions (one round of golf on a date, at a course)
//   - A Session's roster is auto-partitioned into Foursomes (groups of up to 4)
//   - Players submit one 18-hole Scorecard per session, which rolls up into a leaderboard
//
// There is no separate "round" or "tee time" concept — the Foursome IS the pairing
// and the Scorecard IS the player's full result for the session. This keeps the
// hierarchy simple: Playgroup → Session → Foursomes → Scorecards.
package models

import (
	"time"

	// uuid provides universally unique identifiers for primary keys.
	// IDs are generated in application code (see the BeforeCreate hooks below)
	// rather than by the database, so the same models work against both the
	// production Postgres database and the in-memory SQLite database used by tests.
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we simulate them using a named string type
// plus constants. This gives us type safety — you can't accidentally pass a UserRole
// where a SessionStatus is expected — while keeping the values human-readable in the database.

// UserRole represents a user's global permission level across the entire platform.
// The values are capitalized because that is how the identity provider stores them
// in its "custom:role" claim — keeping them identical avoids a mapping layer.
type UserRole string

const (
	UserRoleAdmin       UserRole = "Admin"       // Full access: manage users, roles, any playgroup
	UserRoleGroupLeader UserRole = "GroupLeader" // Can create playgroups and run sessions for them
	UserRolePlayer      UserRole = "Player"      // Regular golfer: joins playgroups, enters their own scores
)

// Valid reports whether the role is one of the three known values.
// Used when an admin changes someone's role — anything else is rejected.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleGroupLeader, UserRolePlayer:
		return true
	}
	return false
}

// SessionStatus tracks the lifecycle of a scheduled session.
// Only "scheduled" is written today; the enum exists as the extension point
// for future in-progress/completed transitions.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
)

// ScorecardStatus distinguishes a work-in-progress scorecard from a final one.
// A "draft" can be overwritten freely by its player; once "submitted" the player
// can no longer edit it themselves (the playgroup leader or an admin still can).
// The leaderboard only counts submitted cards.
type ScorecardStatus string

const (
	ScorecardStatusDraft     ScorecardStatus = "draft"
	ScorecardStatusSubmitted ScorecardStatus = "submitted"
)

// --- Models ---
// Each struct below maps to a database table. GORM uses the struct name (snake_cased and
// pluralized) as the table name by default: User -> users, Playgroup -> playgroups, etc.

// User represents a registered person in the system.
// Users are created automatically the first time an authenticated user hits the API.
// The ExternalID links our internal record to the identity provider's subject claim.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID  *string   `gorm:"uniqueIndex:idx_users_external_id"` // The identity provider's user ID (JWT "sub"); pointer = nullable for seeded rows
	DisplayName string    `gorm:"not null"`                          // The name shown in the app; populated from the JWT "name" claim
	Email       string    `gorm:"uniqueIndex;not null"`              // Unique email; populated from the JWT "email" claim
	Role        UserRole  `gorm:"index;not null;default:'Player'"`   // Global role; synced from the JWT "custom:role" claim, changed only by admins
	CreatedAt   time.Time // GORM automatically sets this on create
	UpdatedAt   time.Time // GORM automatically updates this on every save
}

// BeforeCreate assigns a fresh UUID if the caller didn't set one.
// Generating IDs in Go (instead of a database DEFAULT) keeps the models portable
// across Postgres in production and SQLite in tests.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Playgroup is a persistent group of golfers with one leader and a member roster.
// The leader is the owner: they created the group, schedule its sessions, and
// manage its foursomes. The leader is implicitly a member and never appears in
// the playgroup_members join table.
type Playgroup struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name        string    `gorm:"not null"`
	Description string    `gorm:"not null;default:''"`                             // Optional long-form description; empty string when not provided
	LeaderID    uuid.UUID `gorm:"type:uuid;not null;index:idx_playgroups_leader"` // Immutable owner; indexed so "groups I lead" is one query
	Leader      User      `gorm:"foreignKey:LeaderID"`                            // GORM relationship: preloads the leader's User struct when queried
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Members     []PlaygroupMember `gorm:"foreignKey:PlaygroupID"` // The roster, excluding the leader
}

func (p *Playgroup) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PlaygroupMember is a join table linking a User to a Playgroup they belong to.
// The composite primary key doubles as the uniqueness constraint: adding the
// same member twice fails at the database level with a single atomic INSERT,
// so two concurrent "add member" calls can never clobber each other the way a
// read-modify-write on a stored member list would.
type PlaygroupMember struct {
	PlaygroupID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_playgroup_members_user"` // Indexed so "groups I'm a member of" is one query
	User        User      `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time
}

// Session is one scheduled round of golf for a playgroup, on a specific
// date/time/course. Creating a session immediately partitions the playgroup's
// full roster (leader + members) into foursomes.
type Session struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	PlaygroupID uuid.UUID     `gorm:"type:uuid;not null;index:idx_sessions_playgroup"` // Indexed for the by-playgroup listing
	Playgroup   Playgroup     `gorm:"foreignKey:PlaygroupID"`
	Date        time.Time     `gorm:"not null"`            // The calendar date of the round (time-of-day is carried in TeeTime)
	TeeTime     string        `gorm:"not null"`            // "HH:MM" — kept as a string because it's display data, never computed with
	CourseName  string        `gorm:"not null;default:''"`
	Status      SessionStatus `gorm:"not null;default:'scheduled'"`
	CreatedBy   uuid.UUID     `gorm:"type:uuid;not null"` // Which user created this session (the leader, or an admin)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Foursome is a subgroup of up to four players within a session who play together.
// Foursomes are created in bulk when a session is created (random partition of the
// roster), then edited individually by the leader or wholesale-regenerated.
type Foursome struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SessionID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_foursomes_session"` // Indexed for the by-session listing
	Session        Session    `gorm:"foreignKey:SessionID"`
	FoursomeNumber int        `gorm:"not null"`  // 1-based display order, assigned from the partition's chunk order
	UpdatedBy      *uuid.UUID `gorm:"type:uuid"` // Who last hand-edited the roster; nil for untouched auto-generated foursomes
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Players        []FoursomePlayer `gorm:"foreignKey:FoursomeID"` // Ordered roster, 1–4 players
}

func (f *Foursome) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FoursomePlayer is a join table placing a User into a Foursome, with an explicit
// Position so the roster's order survives a round trip through the database.
// The composite primary key prevents the same player appearing twice in one foursome;
// session-wide uniqueness (a player in at most one foursome per session) is enforced
// by the foursome-edit transaction, which checks the session's other foursomes first.
type FoursomePlayer struct {
	FoursomeID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	User       User      `gorm:"foreignKey:UserID"`
	Position   int       `gorm:"not null"` // 0-based slot within the foursome
}

// HoleScores is an 18-entry list of per-hole strokes, stored as a single JSON
// column. A scorecard is one record, written whole and overwritten whole
// (last-write-wins), so a serialized list is a better fit than 18 child rows.
type HoleScores []int

// Scorecard is one player's 18-hole score record for a session, keyed by
// (foursome, player) — at most one card per player per foursome.
// TotalScore is derived: always recomputed from Holes on every write and
// never trusted from the caller.
type Scorecard struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	FoursomeID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_scorecards_foursome_player"` // Combined unique index with PlayerID
	Foursome   Foursome        `gorm:"foreignKey:FoursomeID;constraint:OnDelete:CASCADE"`             // Regenerating foursomes discards their scorecards
	PlayerID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_scorecards_foursome_player"`
	Player     User            `gorm:"foreignKey:PlayerID"`
	SessionID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_scorecards_session"` // Denormalized from the foursome so the session leaderboard is one query
	Holes      HoleScores      `gorm:"serializer:json;not null"`
	TotalScore int             `gorm:"not null"` // Always sum(Holes); recomputed server-side on every write
	Status     ScorecardStatus `gorm:"not null;default:'draft'"`
	UpdatedBy  uuid.UUID       `gorm:"type:uuid;not null"` // Who last wrote this card (the player, the leader, or an admin)
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s *Scorecard) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
