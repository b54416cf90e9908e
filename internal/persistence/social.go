package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/social"
)

type relationshipRow struct {
	A             agents.AgentID `db:"a"`
	B             agents.AgentID `db:"b"`
	ABAffinity    float64        `db:"ab_affinity"`
	ABTrust       float64        `db:"ab_trust"`
	ABRespect     float64        `db:"ab_respect"`
	ABFamiliarity float64        `db:"ab_familiarity"`
	BAAffinity    float64        `db:"ba_affinity"`
	BATrust       float64        `db:"ba_trust"`
	BARespect     float64        `db:"ba_respect"`
	BAFamiliarity float64        `db:"ba_familiarity"`
	Interactions  int            `db:"interactions"`
	Formed        uint64         `db:"formed"`
	LastTick      uint64         `db:"last_tick"`
}

func toRelationshipRow(r social.Relationship) relationshipRow {
	return relationshipRow{
		A: r.A, B: r.B,
		ABAffinity: r.AtoB.Affinity, ABTrust: r.AtoB.Trust, ABRespect: r.AtoB.Respect, ABFamiliarity: r.AtoB.Familiarity,
		BAAffinity: r.BtoA.Affinity, BATrust: r.BtoA.Trust, BARespect: r.BtoA.Respect, BAFamiliarity: r.BtoA.Familiarity,
		Interactions: r.Interactions, Formed: r.Formed, LastTick: r.LastTick,
	}
}

func (r relationshipRow) relationship() social.Relationship {
	return social.Relationship{
		A:            r.A,
		B:            r.B,
		AtoB:         social.Stance{Affinity: r.ABAffinity, Trust: r.ABTrust, Respect: r.ABRespect, Familiarity: r.ABFamiliarity},
		BtoA:         social.Stance{Affinity: r.BAAffinity, Trust: r.BATrust, Respect: r.BARespect, Familiarity: r.BAFamiliarity},
		Interactions: r.Interactions,
		Formed:       r.Formed,
		LastTick:     r.LastTick,
	}
}

type groupRow struct {
	ID          social.GroupID   `db:"id"`
	Name        string           `db:"name"`
	Kind        social.GroupKind `db:"kind"`
	MembersJSON string           `db:"members_json"`
}

type reputationRow struct {
	GroupID social.GroupID `db:"group_id"`
	AgentID agents.AgentID `db:"agent_id"`
	Value   float64        `db:"value"`
}

type artifactRow struct {
	ID             string              `db:"id"`
	Seq            int                 `db:"seq"`
	Kind           social.ArtifactKind `db:"kind"`
	Content        string              `db:"content"`
	Creator        agents.AgentID      `db:"creator"`
	Created        uint64              `db:"created"`
	KnownByJSON    string              `db:"known_by_json"`
	SentimentJSON  string              `db:"sentiment_json"`
	VariationsJSON string              `db:"variations_json"`
}

type inboxRow struct {
	AgentID    agents.AgentID `db:"agent_id"`
	RumorsJSON string         `db:"rumors_json"`
}

func saveSocial(tx *sqlx.Tx, st social.State) error {
	rels, err := tx.PrepareNamed(`INSERT INTO relationships
		(a, b, ab_affinity, ab_trust, ab_respect, ab_familiarity,
		 ba_affinity, ba_trust, ba_respect, ba_familiarity, interactions, formed, last_tick)
		VALUES (:a, :b, :ab_affinity, :ab_trust, :ab_respect, :ab_familiarity,
		 :ba_affinity, :ba_trust, :ba_respect, :ba_familiarity, :interactions, :formed, :last_tick)`)
	if err != nil {
		return err
	}
	defer rels.Close()
	for _, r := range st.Relationships {
		if _, err := rels.Exec(toRelationshipRow(r)); err != nil {
			return fmt.Errorf("insert relationship %d-%d: %w", r.A, r.B, err)
		}
	}

	for _, g := range st.Groups {
		members, err := json.Marshal(g.Members)
		if err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO social_groups (id, name, kind, members_json)
			VALUES (:id, :name, :kind, :members_json)`,
			groupRow{ID: g.ID, Name: g.Name, Kind: g.Kind, MembersJSON: string(members)})
		if err != nil {
			return fmt.Errorf("insert group %d: %w", g.ID, err)
		}
	}

	for _, r := range st.Reputation {
		_, err := tx.NamedExec(`INSERT INTO reputation (group_id, agent_id, value)
			VALUES (:group_id, :agent_id, :value)`,
			reputationRow{GroupID: r.Group, AgentID: r.Agent, Value: r.Value})
		if err != nil {
			return fmt.Errorf("insert reputation of %d in %d: %w", r.Agent, r.Group, err)
		}
	}

	for i, a := range st.Artifacts {
		row := artifactRow{
			ID: a.ID.String(), Seq: i, Kind: a.Kind, Content: a.Content,
			Creator: a.Creator, Created: a.Created,
		}
		if row.KnownByJSON, err = marshalString(a.KnownBy); err != nil {
			return err
		}
		if row.SentimentJSON, err = marshalString(a.Sentiment); err != nil {
			return err
		}
		if row.VariationsJSON, err = marshalString(a.Variations); err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO artifacts
			(id, seq, kind, content, creator, created, known_by_json, sentiment_json, variations_json)
			VALUES (:id, :seq, :kind, :content, :creator, :created, :known_by_json, :sentiment_json, :variations_json)`, row)
		if err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.ID, err)
		}
	}

	for _, in := range st.Inboxes {
		rumors, err := marshalString(in.Rumors)
		if err != nil {
			return err
		}
		_, err = tx.NamedExec(`INSERT INTO inboxes (agent_id, rumors_json) VALUES (:agent_id, :rumors_json)`,
			inboxRow{AgentID: in.Agent, RumorsJSON: rumors})
		if err != nil {
			return fmt.Errorf("insert inbox of %d: %w", in.Agent, err)
		}
	}
	return nil
}

func (db *DB) loadSocial() (social.State, error) {
	var st social.State

	var rels []relationshipRow
	if err := db.conn.Select(&rels, "SELECT * FROM relationships ORDER BY a, b"); err != nil {
		return st, err
	}
	for _, r := range rels {
		st.Relationships = append(st.Relationships, r.relationship())
	}

	var groups []groupRow
	if err := db.conn.Select(&groups, "SELECT * FROM social_groups ORDER BY id"); err != nil {
		return st, err
	}
	for _, g := range groups {
		grp := social.Group{ID: g.ID, Name: g.Name, Kind: g.Kind}
		if err := json.Unmarshal([]byte(g.MembersJSON), &grp.Members); err != nil {
			return st, fmt.Errorf("decode group %d: %w", g.ID, err)
		}
		st.Groups = append(st.Groups, grp)
	}

	var rep []reputationRow
	if err := db.conn.Select(&rep, "SELECT * FROM reputation ORDER BY group_id, agent_id"); err != nil {
		return st, err
	}
	for _, r := range rep {
		st.Reputation = append(st.Reputation, social.ReputationEntry{Group: r.GroupID, Agent: r.AgentID, Value: r.Value})
	}

	var arts []artifactRow
	if err := db.conn.Select(&arts, "SELECT * FROM artifacts ORDER BY seq"); err != nil {
		return st, err
	}
	for _, r := range arts {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return st, fmt.Errorf("decode artifact id %q: %w", r.ID, err)
		}
		a := social.Artifact{ID: id, Kind: r.Kind, Content: r.Content, Creator: r.Creator, Created: r.Created}
		if err := unmarshalString(r.KnownByJSON, &a.KnownBy); err != nil {
			return st, fmt.Errorf("decode artifact %s: %w", id, err)
		}
		if err := unmarshalString(r.SentimentJSON, &a.Sentiment); err != nil {
			return st, fmt.Errorf("decode artifact %s: %w", id, err)
		}
		if err := unmarshalString(r.VariationsJSON, &a.Variations); err != nil {
			return st, fmt.Errorf("decode artifact %s: %w", id, err)
		}
		st.Artifacts = append(st.Artifacts, a)
	}

	var inboxes []inboxRow
	if err := db.conn.Select(&inboxes, "SELECT * FROM inboxes ORDER BY agent_id"); err != nil {
		return st, err
	}
	for _, r := range inboxes {
		in := social.Inbox{Agent: r.AgentID}
		if err := unmarshalString(r.RumorsJSON, &in.Rumors); err != nil {
			return st, fmt.Errorf("decode inbox of %d: %w", r.AgentID, err)
		}
		st.Inboxes = append(st.Inboxes, in)
	}
	return st, nil
}

// Relationships returns the stored relationships involving an agent, or all of them for 0.
func (db *DB) Relationships(agent agents.AgentID) ([]social.Relationship, error) {
	var rows []relationshipRow
	var err error
	if agent == 0 {
		err = db.conn.Select(&rows, "SELECT * FROM relationships ORDER BY a, b")
	} else {
		err = db.conn.Select(&rows, "SELECT * FROM relationships WHERE a = ? OR b = ? ORDER BY a, b", agent, agent)
	}
	if err != nil {
		return nil, err
	}
	out := make([]social.Relationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.relationship())
	}
	return out, nil
}

func marshalString(v any) (string, error) {
	raw, err := json.Marshal(v)
	return string(raw), err
}

func unmarshalString(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
