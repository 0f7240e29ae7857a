package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"

	"lanshare/internal/presence"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

const recentActivityLimit = 20

type setUsernameRequest struct {
	Username string `json:"username" validate:"required,max=50"`
}

func (s *Server) handleSetUsername(w http.ResponseWriter, r *http.Request) {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}
	var req setUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Username must be between 1 and 50 characters")
		return
	}

	sess := s.session(w, r)
	old := sess.Name()
	sess.DisplayName = req.Username
	s.saveSession(w, r, sess)
	if !s.presence.Rename(sess.ID, sess.DisplayName) {
		s.touch(r, sess, "home")
	}
	s.record(r, sess, presence.KindUsernameChanged, "from "+old+" to "+sess.DisplayName)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "username": sess.DisplayName})
}

type userJSON struct {
	Name        string    `json:"name"`
	IP          string    `json:"ip"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
	Location    string    `json:"location"`
	IsYou       bool      `json:"is_you"`
}

func (s *Server) handleConnectedUsers(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	active := s.presence.ListActive()
	users := make([]userJSON, 0, len(active))
	for _, e := range active {
		users = append(users, userJSON{
			Name:        e.Name,
			IP:          e.RemoteAddress,
			ConnectedAt: e.ConnectedAt,
			LastSeen:    e.LastSeenAt,
			Location:    e.Location,
			IsYou:       e.SessionID == sess.ID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "total_count": len(users)})
}

type activityJSON struct {
	User      string        `json:"user"`
	Action    presence.Kind `json:"action"`
	Detail    string        `json:"detail"`
	Timestamp time.Time     `json:"timestamp"`
	IP        string        `json:"ip"`
}

func (s *Server) handleUserActivities(w http.ResponseWriter, r *http.Request) {
	acts, total := s.presence.RecentActivities(recentActivityLimit)
	out := make([]activityJSON, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityJSON{
			User:      a.DisplayName,
			Action:    a.Kind,
			Detail:    a.Detail,
			Timestamp: a.Timestamp,
			IP:        a.RemoteAddress,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": out, "total_count": total})
}

type serverJSON struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
	URL  string `json:"url"`
}

type statsJSON struct {
	ActiveUsers     int        `json:"active_users"`
	TotalActivities int        `json:"total_activities"`
	SharedFolder    string     `json:"shared_folder"`
	Server          serverJSON `json:"server"`
	Uptime          string     `json:"uptime"`
	Timestamp       time.Time  `json:"timestamp"`
}

func (s *Server) handleServerStats(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	active := s.presence.CountActive()
	_, total := s.presence.RecentActivities(1)
	writeJSON(w, http.StatusOK, statsJSON{
		ActiveUsers:     active,
		TotalActivities: total,
		SharedFolder:    s.root.Path(),
		Server:          serverJSON{IP: s.localIP, Port: s.cfg.Port, URL: s.URL()},
		Uptime:          now.Sub(s.started).Truncate(time.Second).String(),
		Timestamp:       now,
	})
}

// handleHeartbeat keeps an existing presence entry alive. It never creates
// one: a client that was evicted reappears on its next page load.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	active := s.presence.Heartbeat(sess.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "active": active})
}
