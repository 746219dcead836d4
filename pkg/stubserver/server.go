// Package stubserver is an in-memory stand-in for the church app backend's
// chat endpoints. It exists for local development and integration tests of
// the sync core; it is not the production server and persists nothing.
package stubserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/afritechx-ux/hlc-church-app-sub000/pkg/chatsync"
)

const kindPattern = "{kind:support|direct|group}"

// Server holds all stub state behind one lock. Conversations are created on
// first touch, server ids are uuids and timestamps are strictly increasing
// so the strictly-newer-than fetch contract never drops a message.
type Server struct {
	mu            sync.Mutex
	conversations map[string]*chatsync.Conversation
	uploads       map[string]upload
	lastTS        time.Time
	limiters      *limiterPool
	log           zerolog.Logger
}

type upload struct {
	data        []byte
	contentType string
	name        string
}

// New creates an empty stub backend.
func New(log zerolog.Logger) *Server {
	return &Server{
		conversations: make(map[string]*chatsync.Conversation),
		uploads:       make(map[string]upload),
		limiters:      newLimiterPool(),
		log:           log.With().Str("component", "stub_server").Logger(),
	}
}

// Handler returns the HTTP routes matching the backend wire contract, plus
// /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}", s.handleFile).Methods(http.MethodGet)
	r.HandleFunc("/"+kindPattern+"/{cid}", s.handleConversation).Methods(http.MethodGet)
	r.HandleFunc("/"+kindPattern+"/{cid}/messages/new", s.handleNewMessages).Methods(http.MethodGet)
	r.HandleFunc("/"+kindPattern+"/{cid}/messages", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/"+kindPattern+"/{cid}/read", s.handleMarkRead).Methods(http.MethodPost)
	r.Use(s.rateLimit)
	return r
}

// Seed injects a message directly, as another participant would. Returns
// the stored copy.
func (s *Server) Seed(kind chatsync.ConversationKind, cid, senderID, content string) chatsync.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversation(kind, cid)
	msg := chatsync.Message{
		ID:             uuid.NewString(),
		ConversationID: cid,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.nextTimestamp(),
	}
	conv.Messages = append(conv.Messages, msg)
	return msg
}

// conversation returns the thread, creating it on first touch. Callers hold
// the lock.
func (s *Server) conversation(kind chatsync.ConversationKind, cid string) *chatsync.Conversation {
	key := string(kind) + "/" + cid
	conv, ok := s.conversations[key]
	if !ok {
		conv = &chatsync.Conversation{ID: cid, Kind: kind, Messages: []chatsync.Message{}}
		s.conversations[key] = conv
	}
	return conv
}

// nextTimestamp returns a strictly increasing server clock. Callers hold
// the lock.
func (s *Server) nextTimestamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Millisecond)
	}
	s.lastTS = now
	return now
}

func vars(r *http.Request) (chatsync.ConversationKind, string) {
	v := mux.Vars(r)
	return chatsync.ConversationKind(v["kind"]), v["cid"]
}

// senderID derives the caller identity from the bearer token. The stub has
// no real auth; the token is the identity.
func senderID(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return "anonymous"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	kind, cid := vars(r)
	s.mu.Lock()
	conv := s.conversation(kind, cid)
	out := *conv
	out.Messages = append([]chatsync.Message(nil), conv.Messages...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, &out)
}

func (s *Server) handleNewMessages(w http.ResponseWriter, r *http.Request) {
	kind, cid := vars(r)
	sinceParam := r.URL.Query().Get("since")
	since, err := time.Parse(time.RFC3339Nano, sinceParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since parameter: %v", err))
		return
	}
	s.mu.Lock()
	conv := s.conversation(kind, cid)
	newer := make([]chatsync.Message, 0)
	for _, m := range conv.Messages {
		if m.CreatedAt.After(since) {
			newer = append(newer, m)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, newer)
}

type postMessageRequest struct {
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentType string `json:"attachmentType"`
	AttachmentName string `json:"attachmentName"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	kind, cid := vars(r)
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Content == "" && req.AttachmentURL == "" {
		writeError(w, http.StatusUnprocessableEntity, "message has no content")
		return
	}

	msg := chatsync.Message{
		ID:             uuid.NewString(),
		ConversationID: cid,
		SenderID:       senderID(r),
		Content:        req.Content,
	}
	if req.AttachmentURL != "" {
		msg.Attachment = &chatsync.Attachment{
			URL:         req.AttachmentURL,
			Kind:        chatsync.AttachmentKind(req.AttachmentType),
			DisplayName: req.AttachmentName,
		}
	}

	s.mu.Lock()
	conv := s.conversation(kind, cid)
	msg.CreatedAt = s.nextTimestamp()
	conv.Messages = append(conv.Messages, msg)
	s.mu.Unlock()

	s.log.Debug().Str("conversation_id", cid).Str("message_id", msg.ID).Msg("Stored message")
	writeJSON(w, http.StatusCreated, &msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	kind, cid := vars(r)
	reader := senderID(r)
	now := time.Now().UTC()
	s.mu.Lock()
	conv := s.conversation(kind, cid)
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.SenderID != reader && m.ReadAt == nil {
			at := now
			m.ReadAt = &at
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	contentType := r.FormValue("type")
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.uploads[id] = upload{data: data, contentType: contentType, name: header.Filename}
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, &chatsync.UploadedFile{
		URL:  "/files/" + id,
		Type: contentType,
		Name: header.Filename,
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	up, ok := s.uploads[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "no such file")
		return
	}
	w.Header().Set("Content-Type", up.contentType)
	_, _ = w.Write(up.data)
}
