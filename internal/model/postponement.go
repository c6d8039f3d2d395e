package model

import "time"

// Postponement is an append-only record of one deferral of a task.
// TaskID is not enforced: the parent task may have been deleted since.
type Postponement struct {
	ID                 string    `json:"id"`
	TaskID             string    `json:"taskId"`
	Date               time.Time `json:"date"`
	Reason             string    `json:"reason"`
	PostponementNumber int       `json:"postponementNumber"`
}

// ReasonOther asks the user for a free-text reason instead.
const ReasonOther = "Diğer"

// PredefinedReasons is the suggestion set offered when postponing.
// Reasons are stored as plain strings; free text is allowed too.
var PredefinedReasons = []string{
	"Yorgunum",
	"Motivasyonum yok",
	"Dikkat dağıldı",
	"Zamanım yok",
	"Zor görünüyor",
	"Başka bir şey yapmak istiyorum",
	ReasonOther,
}
