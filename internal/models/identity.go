package models

import "time"

type CommunicationUser struct {
	CommunicationUserID string `json:"communicationUserId"`
}

type UserToken struct {
	User      CommunicationUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresOn time.Time         `json:"expiresOn"`
}
