package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"lucremais-task/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// CreateTaskInput is the admin payload for a new task.
type CreateTaskInput struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Schedule string `json:"schedule"`
	Points   int64  `json:"points"`
}

func (in CreateTaskInput) validate() (string, error) {
	if strings.TrimSpace(in.Title) == "" {
		return "", invalidInput("title is required")
	}
	u, err := url.ParseRequestURI(strings.TrimSpace(in.Link))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalidInput("link must be an absolute http(s) URL")
	}
	schedule, ok := models.NormalizeSchedule(in.Schedule)
	if !ok {
		return "", invalidInput("schedule must be \"any\" or a weekday name, got %q", in.Schedule)
	}
	if in.Points <= 0 {
		return "", invalidInput("points must be positive")
	}
	return schedule, nil
}

// CreateTask adds an active task to the catalog.
func (s *CatalogService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	schedule, err := in.validate()
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:       uuid.NewString(),
		Title:    strings.TrimSpace(in.Title),
		Link:     strings.TrimSpace(in.Link),
		Schedule: schedule,
		Points:   in.Points,
		Active:   true,
	}
	task.Slug, err = s.uniqueSlug(ctx, task.Title, task.ID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	log.Printf("[CATALOG] ✅ Task created: %s (%s, %d pts, %s)", task.Slug, task.ID, task.Points, task.Schedule)
	return task, nil
}

func (s *CatalogService) uniqueSlug(ctx context.Context, title, id string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "task"
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Task{}).Where("slug = ?", base).Count(&count).Error; err != nil {
		return "", fmt.Errorf("check slug: %w", err)
	}
	if count == 0 {
		return base, nil
	}
	return base + "-" + id[:8], nil
}

// DeactivateTask hides a task from the catalog. Completions that reference it
// are untouched.
func (s *CatalogService) DeactivateTask(ctx context.Context, taskID string) (*models.Task, error) {
	db := s.DB.WithContext(ctx)
	res := db.Model(&models.Task{}).Where("id = ?", taskID).Update("active", false)
	if res.Error != nil {
		return nil, fmt.Errorf("deactivate task %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}
	log.Printf("[CATALOG] ⏸️ Task deactivated: %s", taskID)
	return loadTask(db, taskID)
}

// GetTask loads one task, active or not.
func (s *CatalogService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return loadTask(s.DB.WithContext(ctx), taskID)
}

func loadTask(tx *gorm.DB, taskID string) (*models.Task, error) {
	var task models.Task
	if err := tx.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return &task, nil
}

// ListActiveTasks returns the active catalog, newest first.
func (s *CatalogService) ListActiveTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	return tasks, nil
}

// TasksForDay materializes the catalog for one user on one day: active tasks
// scheduled for that weekday, each flagged with whether the user already
// completed it that day.
func (s *CatalogService) TasksForDay(ctx context.Context, userID int64, day string) ([]models.DailyTask, error) {
	date, err := ParseDay(day)
	if err != nil {
		return nil, err
	}

	tasks, err := s.ListActiveTasks(ctx)
	if err != nil {
		return nil, err
	}

	var doneIDs []string
	err = s.DB.WithContext(ctx).Model(&models.Completion{}).
		Where("user_id = ? AND day = ?", userID, day).
		Pluck("task_id", &doneIDs).Error
	if err != nil {
		return nil, fmt.Errorf("list completions for %d on %s: %w", userID, day, err)
	}
	done := make(map[string]bool, len(doneIDs))
	for _, id := range doneIDs {
		done[id] = true
	}

	out := make([]models.DailyTask, 0, len(tasks))
	for _, t := range tasks {
		if !t.AppliesOn(date.Weekday()) {
			continue
		}
		out = append(out, models.DailyTask{Task: t, Done: done[t.ID]})
	}
	return out, nil
}
