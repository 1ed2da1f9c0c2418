package models

import "time"

// CampaignUpdateEvent is published by the campaign admin side whenever the
// campaign set changes, so workers can refresh their cached campaigns.
type CampaignUpdateEvent struct {
	Action     string    `json:"action"`
	CampaignID int64     `json:"campaign_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ChangedBy  string    `json:"changed_by,omitempty"`
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionReload = "reload"
)

func IsKnownCampaignAction(action string) bool {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionReload:
		return true
	default:
		return false
	}
}
