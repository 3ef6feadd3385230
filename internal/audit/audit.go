package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventType 审计事件类型。
type EventType string

const (
	EventRequestStart       EventType = "request_start"
	EventQueryStart         EventType = "query_start"
	EventCacheHit           EventType = "cache_hit"
	EventToolCall           EventType = "tool_call"
	EventDocumentsRetrieved EventType = "documents_retrieved"
	EventLLMResponse        EventType = "llm_response"
	EventRequestEnd         EventType = "request_end"
	EventRequestFailed      EventType = "request_failed"
	EventError              EventType = "error"
	EventWarning            EventType = "warning"
)

// Event 单条审计事件。
type Event struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Query         string    `json:"query,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	DocumentCount int       `json:"document_count,omitempty"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
}

// Summary 会话汇总，始终从事件列表重新计算。
type Summary struct {
	Queries            int     `json:"queries"`
	ToolCalls          int     `json:"tool_calls"`
	DocumentsRetrieved int     `json:"documents_retrieved"`
	MeanResponseTimeMs float64 `json:"mean_response_time_ms"`
	Errors             int     `json:"errors"`
	Warnings           int     `json:"warnings"`
}

// Session 审计会话：有序、只增的事件列表。
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Events    []Event   `json:"events"`
}

// Summary 从事件列表派生汇总。
func (s *Session) Summary() Summary {
	var sum Summary
	responseCount := 0
	for _, e := range s.Events {
		switch e.Type {
		case EventQueryStart:
			sum.Queries++
		case EventToolCall:
			sum.ToolCalls++
		case EventDocumentsRetrieved:
			sum.DocumentsRetrieved += e.DocumentCount
		case EventRequestEnd:
			sum.MeanResponseTimeMs += float64(e.DurationMs)
			responseCount++
		case EventError, EventRequestFailed:
			sum.Errors++
		case EventWarning:
			sum.Warnings++
		}
	}
	if responseCount > 0 {
		sum.MeanResponseTimeMs /= float64(responseCount)
	}
	return sum
}

// eventRecord 持久日志的 GORM 模型。
type eventRecord struct {
	ID            string    `gorm:"primaryKey;size:36"`
	SessionID     string    `gorm:"index;size:36;not null"`
	Type          string    `gorm:"size:32;not null"`
	Timestamp     time.Time `gorm:"index;not null"`
	Query         string    `gorm:"type:text"`
	Detail        string    `gorm:"type:text"`
	DocumentCount int
	DurationMs    int64
}

func (eventRecord) TableName() string { return "audit_events" }

// Manager 审计管理器。内存会话表 + 可选的持久事件日志。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	db       *gorm.DB
	logger   *zap.Logger
}

// NewManager 创建审计管理器；db 为 nil 时只保留内存会话。
func NewManager(db *gorm.DB, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if db != nil {
		if err := db.AutoMigrate(&eventRecord{}); err != nil {
			return nil, fmt.Errorf("migrate audit log: %w", err)
		}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		db:       db,
		logger:   logger.With(zap.String("component", "audit_trail")),
	}, nil
}

// StartSession 显式创建会话并返回会话 id。
func (m *Manager) StartSession() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &Session{ID: id, StartedAt: time.Now()}
	m.mu.Unlock()

	m.logger.Debug("audit session started", zap.String("session_id", id))
	return id
}

// Log 追加事件到会话与持久日志。
// 未知会话 id 返回错误；持久化失败只记警告，不影响调用方。
func (m *Manager) Log(sessionID string, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.SessionID = sessionID

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown audit session %q", sessionID)
	}
	session.Events = append(session.Events, event)
	m.mu.Unlock()

	if m.db != nil {
		rec := eventRecord{
			ID:            event.ID,
			SessionID:     event.SessionID,
			Type:          string(event.Type),
			Timestamp:     event.Timestamp,
			Query:         event.Query,
			Detail:        event.Detail,
			DocumentCount: event.DocumentCount,
			DurationMs:    event.DurationMs,
		}
		if err := m.db.Create(&rec).Error; err != nil {
			m.logger.Warn("audit event not persisted",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// Session 返回会话副本。
func (m *Manager) Session(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := Session{ID: s.ID, StartedAt: s.StartedAt}
	out.Events = append(out.Events, s.Events...)
	return out, true
}

// Summary 返回会话汇总。
func (m *Manager) Summary(id string) (Summary, bool) {
	s, ok := m.Session(id)
	if !ok {
		return Summary{}, false
	}
	return s.Summary(), true
}

// PersistedEvents 返回某会话落库的事件数；无持久层时为 0。
func (m *Manager) PersistedEvents(sessionID string) (int64, error) {
	if m.db == nil {
		return 0, nil
	}
	var count int64
	err := m.db.Model(&eventRecord{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

// ClearAuditTrail 唯一的批量删除入口：
// 清空全部内存会话与持久日志。
func (m *Manager) ClearAuditTrail() error {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if m.db != nil {
		if err := m.db.Where("1 = 1").Delete(&eventRecord{}).Error; err != nil {
			return fmt.Errorf("clear audit log: %w", err)
		}
	}
	m.logger.Info("audit trail cleared")
	return nil
}
