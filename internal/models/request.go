package models

import "time"

// Статусы заявки на дизайн.
const (
	RequestPending            = "PENDING"
	RequestInProgress         = "IN_PROGRESS"
	RequestRevisionsRequested = "REVISIONS_REQUESTED"
	RequestCompleted          = "COMPLETED"
	RequestCanceled           = "CANCELED"
)

// Приоритеты заявки.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

var requestTransitions = map[string][]string{
	RequestPending:            {RequestInProgress, RequestCanceled},
	RequestInProgress:         {RequestRevisionsRequested, RequestCompleted, RequestCanceled},
	RequestRevisionsRequested: {RequestInProgress, RequestCanceled},
}

// CanTransition сообщает, разрешён ли переход заявки из статуса from в статус to.
// COMPLETED и CANCELED конечные.
func CanTransition(from, to string) bool {
	for _, s := range requestTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DesignRequest — заявка клиента на дизайн-работу.
type DesignRequest struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RequestFilter параметры выборки заявок. Пустой UserID означает все заявки (для администратора).
type RequestFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// File — файл, загруженный через провайдера загрузок.
type File struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	DesignRequestID string    `json:"design_request_id,omitempty"`
	FileName        string    `json:"file_name"`
	FileSize        int64     `json:"file_size"`
	FileURL         string    `json:"file_url"`
	Key             string    `json:"key"`
	CreatedAt       time.Time `json:"created_at"`
}
