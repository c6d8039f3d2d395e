package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// ScheduleWeekly registers a job for the given weekday at the HH:MM time string.
func (s *SchedulerService) ScheduleWeekly(weekday time.Weekday, timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildWeeklySpec(weekday, timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// Remove unregisters a job. Unknown ids are ignored.
func (s *SchedulerService) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Next returns when the job runs next, or the zero time if it is unknown
// or the scheduler has not been started.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ParseClock splits an HH:MM string into hour and minute.
func ParseClock(timeStr string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(timeStr), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", timeStr)
	}
	return hour, minute, nil
}

func buildWeeklySpec(weekday time.Weekday, timeStr string) (string, error) {
	hour, minute, err := ParseClock(timeStr)
	if err != nil {
		return "", err
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * %d", minute, hour, int(weekday)), nil
}
