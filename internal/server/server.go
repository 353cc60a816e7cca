// Package server предоставляет HTTP API для асинхронной конвертации историй.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/pkg/config"
)

// maxUploadBytes ограничивает размер загружаемого файла выгрузки.
const maxUploadBytes = 100 << 20

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// HistoryProcessor определяет интерфейс сценария, который конвертирует
// файл выгрузки VK в историю Telegram.
type HistoryProcessor interface {
	ProcessHistory(ctx context.Context, vkHistoryPath string) (*domain.TgChatHistory, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	processor  HistoryProcessor
	log        *slog.Logger
}

// messageView — представление одного сообщения в ответе API.
type messageView struct {
	Ts         time.Time `json:"ts"`
	User       string    `json:"user"`
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
}

// New создает новый экземпляр Server
func New(cfg *config.Config, processor HistoryProcessor, taskStore *TaskStore, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		taskStore: taskStore,
		processor: processor,
		log:       log,
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/tasks/{taskID}/result", s.handleTaskResult)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// handleConvert принимает файл выгрузки VK и запускает фоновую конвертацию.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Не удалось разобрать форму", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Не удалось получить файл из формы", http.StatusBadRequest)
		return
	}
	defer file.Close()

	taskID := uuid.NewString()
	tempFilePath := filepath.Join(os.TempDir(), fmt.Sprintf("vk_history_%s.json", taskID))

	out, err := os.Create(tempFilePath)
	if err != nil {
		http.Error(w, "Не удалось создать временный файл", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		http.Error(w, "Не удалось сохранить загруженный файл", http.StatusInternalServerError)
		return
	}

	s.taskStore.CreateTask(taskID, s.cfg.TaskTTL())
	s.log.Info("Conversion task accepted", "task_id", taskID, "file", tempFilePath)

	go s.runTask(taskID, tempFilePath)

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// runTask выполняет конвертацию в фоне и записывает результат в хранилище задач.
func (s *Server) runTask(taskID, tempFilePath string) {
	defer os.Remove(tempFilePath)

	if err := s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing); err != nil {
		s.log.Error("Failed to mark task as processing", "task_id", taskID, "error", err)
		return
	}

	taskCtx := context.Background()
	if s.cfg.Processing.TaskTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, time.Duration(s.cfg.Processing.TaskTimeoutSeconds)*time.Second)
		defer cancel()
	}

	result, err := s.processor.ProcessHistory(taskCtx, tempFilePath)
	if err != nil {
		s.log.Error("Conversion task failed", "task_id", taskID, "error", err)
		if storeErr := s.taskStore.UpdateTaskError(taskID, err.Error()); storeErr != nil {
			s.log.Error("Failed to store task error", "task_id", taskID, "error", storeErr)
		}
		return
	}

	if err := s.taskStore.UpdateTaskResult(taskID, result); err != nil {
		s.log.Error("Failed to store task result", "task_id", taskID, "error", err)
		return
	}
	s.log.Info("Conversion task completed", "task_id", taskID, "message_count", len(result.Messages))
}

// handleTaskStatus возвращает текущий статус задачи.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":       task.ID,
		"status":        task.Status,
		"error_message": task.ErrorMessage,
	})
}

// handleTaskResult возвращает результат завершенной задачи с пагинацией сообщений.
func (s *Server) handleTaskResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	task, err := s.taskStore.GetTask(taskID)
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	if task.Status != TaskStatusCompleted {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}

	page := parsePositiveInt(r.URL.Query().Get("page"), 1)
	pageSize := parsePositiveInt(r.URL.Query().Get("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	messages := task.Result.Messages
	startIndex := (page - 1) * pageSize
	endIndex := startIndex + pageSize
	if startIndex > len(messages) {
		startIndex = len(messages)
	}
	if endIndex > len(messages) {
		endIndex = len(messages)
	}

	data := make([]messageView, 0, endIndex-startIndex)
	for _, msg := range messages[startIndex:endIndex] {
		view := messageView{Ts: msg.Ts, User: msg.User, Text: msg.Text}
		if msg.Attachment != nil {
			view.Attachment = msg.Attachment.Name()
		}
		data = append(data, view)
	}

	totalItems := len(messages)
	totalPages := (totalItems + pageSize - 1) / pageSize

	writeJSON(w, http.StatusOK, map[string]any{
		"title":    task.Result.Title,
		"is_group": task.Result.IsGroup(),
		"pagination": map[string]int{
			"current_page": page,
			"page_size":    pageSize,
			"total_items":  totalItems,
			"total_pages":  totalPages,
		},
		"data": data,
	})
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// parsePositiveInt разбирает положительное целое из строки запроса.
func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
