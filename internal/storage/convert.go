package storage

import (
	"github.com/charlesng35/partyfinder/internal/models"
	"github.com/charlesng35/partyfinder/internal/party"
)

func toPost(m models.PartyPost) party.Post {
	post := party.Post{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		DungeonType: m.DungeonType,
		DungeonID:   m.DungeonID,
		DungeonName: m.DungeonName,
		DungeonTier: m.DungeonTier,
		Schedule: party.Schedule{
			IsImmediate: m.IsImmediate,
			StartsAt:    m.ScheduledAt,
			EndsAt:      m.ScheduledEnd,
			RunCount:    m.RunCount,
		},
		JoinType: party.JoinTypeFromLabel(m.JoinType),
		Requirements: party.Requirements{
			MinItemLevel:    m.MinItemLevel,
			MinBreakthrough: m.MinBreakthrough,
			MinCombatPower:  m.MinCombatPower,
		},
		Status:    party.PostStatusFromLabel(m.Status),
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Slots:     make([]party.Slot, 0, len(m.Slots)),
	}
	for _, slot := range m.Slots {
		post.Slots = append(post.Slots, toSlot(slot))
	}
	return post
}

func toSlot(m models.PartySlot) party.Slot {
	slot := party.Slot{
		ID:            m.ID,
		PostID:        m.PostID,
		Number:        m.SlotNumber,
		PartyNumber:   m.PartyNumber,
		Role:          m.Role,
		RequiredClass: m.RequiredClass,
	}
	if m.OccupantApplicationID != nil {
		slot.OccupantID = *m.OccupantApplicationID
	}
	return slot
}

func fromPost(post party.Post) models.PartyPost {
	m := models.PartyPost{
		BaseModel:       models.BaseModel{ID: post.ID, CreatedAt: post.CreatedAt, UpdatedAt: post.UpdatedAt},
		OwnerID:         post.OwnerID,
		Title:           post.Title,
		Description:     post.Description,
		DungeonType:     post.DungeonType,
		DungeonID:       post.DungeonID,
		DungeonName:     post.DungeonName,
		DungeonTier:     post.DungeonTier,
		IsImmediate:     post.Schedule.IsImmediate,
		ScheduledAt:     post.Schedule.StartsAt,
		ScheduledEnd:    post.Schedule.EndsAt,
		RunCount:        post.Schedule.RunCount,
		JoinType:        post.JoinType.String(),
		MinItemLevel:    post.Requirements.MinItemLevel,
		MinBreakthrough: post.Requirements.MinBreakthrough,
		MinCombatPower:  post.Requirements.MinCombatPower,
		Status:          post.Status.String(),
		ExpiresAt:       post.ExpiresAt,
	}
	for _, slot := range post.Slots {
		m.Slots = append(m.Slots, models.PartySlot{
			BaseModel:     models.BaseModel{ID: slot.ID},
			PostID:        post.ID,
			SlotNumber:    slot.Number,
			PartyNumber:   slot.PartyNumber,
			Role:          slot.Role,
			RequiredClass: slot.RequiredClass,
		})
	}
	return m
}

func toApplication(m models.PartyApplication) party.Application {
	return party.Application{
		ID:          m.ID,
		PostID:      m.PostID,
		SlotID:      m.SlotID,
		ApplicantID: m.ApplicantID,
		Character: party.Character{
			Name:         m.CharacterName,
			Class:        m.CharacterClass,
			ServerID:     m.ServerID,
			Level:        m.Level,
			ItemLevel:    m.ItemLevel,
			Breakthrough: m.Breakthrough,
			CombatPower:  m.CombatPower,
		},
		Message:     m.Message,
		Status:      party.ApplicationStatusFromLabel(m.Status),
		Reason:      party.RejectReason(m.Reason),
		SubmittedAt: m.SubmittedAt,
		DecidedAt:   m.DecidedAt,
	}
}

func fromApplication(app party.Application) models.PartyApplication {
	m := models.PartyApplication{
		BaseModel:      models.BaseModel{ID: app.ID},
		PostID:         app.PostID,
		SlotID:         app.SlotID,
		ApplicantID:    app.ApplicantID,
		CharacterName:  app.Character.Name,
		CharacterClass: app.Character.Class,
		ServerID:       app.Character.ServerID,
		Level:          app.Character.Level,
		ItemLevel:      app.Character.ItemLevel,
		Breakthrough:   app.Character.Breakthrough,
		CombatPower:    app.Character.CombatPower,
		Message:        app.Message,
		Status:         app.Status.String(),
		Reason:         string(app.Reason),
		SubmittedAt:    app.SubmittedAt,
		DecidedAt:      app.DecidedAt,
	}
	if app.Status.Live() {
		key := liveKey(app.PostID, app.ApplicantID)
		m.LiveKey = &key
	}
	return m
}

func liveKey(postID, applicantID string) string {
	return postID + ":" + applicantID
}

func statusLabels(statuses []party.PostStatus) []string {
	labels := make([]string, 0, len(statuses))
	for _, status := range statuses {
		labels = append(labels, status.String())
	}
	return labels
}
