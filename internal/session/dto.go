// AngelaMos | 2026
// dto.go

package session

import (
	"github.com/harborview/gateway/internal/refresh"
)

type MeResponse struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	JobTitle   string `json:"job_title,omitempty"`
	Role       string `json:"role,omitempty"`
}

type SessionsResponse struct {
	Sessions []refresh.SessionInfo `json:"sessions"`
}
