// reconcile.go: фоновая сверка файлового хранилища и метаданных.
//
// Для каждого пользователя сравниваются записи таблицы files
// и файлы в каталоге пользователя. Обнаруживаемые проблемы:
//   - orphaned_file: файл на диске без записи метаданных
//   - missing_file: запись метаданных без файла на диске
//   - size_mismatch: размер на диске отличается от записанного
//
// Сверка только сообщает о проблемах, ничего не исправляя.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/cloud-storage/internal/domain/model"
)

// Prometheus метрики сверки.
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cs_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cs_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// IssueType: тип расхождения.
type IssueType string

const (
	IssueOrphanedFile IssueType = "orphaned_file"
	IssueMissingFile  IssueType = "missing_file"
	IssueSizeMismatch IssueType = "size_mismatch"
)

// ReconcileIssue: одно обнаруженное расхождение.
type ReconcileIssue struct {
	Type     IssueType
	UserID   int64
	UserName string
	FileName string
	// Размеры заполняются для size_mismatch
	RecordedSize int64
	ActualSize   int64
}

// ReconcileReport: результат одного запуска сверки.
type ReconcileReport struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	UsersChecked int
	FilesChecked int
	Issues       []ReconcileIssue
}

// UserLister: источник списка пользователей.
type UserLister interface {
	List(ctx context.Context) ([]*model.User, error)
}

// FileScanner: источник фактического содержимого каталогов.
type FileScanner interface {
	ListUserFiles(userName string) (map[string]int64, error)
}

// ReconcileService: сервис фоновой сверки хранилища.
type ReconcileService struct {
	users    UserLister
	files    FileMetadataStore
	scanner  FileScanner
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	users UserLister,
	files FileMetadataStore,
	scanner FileScanner,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		users:    users,
		files:    files,
		scanner:  scanner,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает фоновую сверку и дожидается завершения текущего цикла.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
		<-rs.done
	}
	rs.logger.Info("Сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: time.Now().UTC()}
	rs.logger.Info("Сверка начата")

	users, err := rs.users.List(ctx)
	if err != nil {
		rs.logger.Error("Ошибка получения списка пользователей",
			slog.String("error", err.Error()),
		)
		users = nil
	}

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		issues, checked, err := rs.reconcileUser(ctx, u)
		if err != nil {
			rs.logger.Error("Ошибка сверки пользователя",
				slog.String("user", u.UserName),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.UsersChecked++
		report.FilesChecked += checked
		report.Issues = append(report.Issues, issues...)
	}

	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(report.StartedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range report.Issues {
		reconcileIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
		rs.logger.Warn("Обнаружено расхождение",
			slog.String("type", string(issue.Type)),
			slog.String("user", issue.UserName),
			slog.String("file", issue.FileName),
			slog.Int64("recorded_size", issue.RecordedSize),
			slog.Int64("actual_size", issue.ActualSize),
		)
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("users_checked", report.UsersChecked),
		slog.Int("files_checked", report.FilesChecked),
		slog.Int("issues", len(report.Issues)),
		slog.String("duration", duration.String()),
	)

	return report, false
}

// reconcileUser сравнивает метаданные и диск одного пользователя.
// Возвращает расхождения и число проверенных имён.
func (rs *ReconcileService) reconcileUser(ctx context.Context, u *model.User) ([]ReconcileIssue, int, error) {
	records, err := rs.files.List(ctx, u.ID, model.SortByFileName, true)
	if err != nil {
		return nil, 0, err
	}
	onDisk, err := rs.scanner.ListUserFiles(u.UserName)
	if err != nil {
		return nil, 0, err
	}

	var issues []ReconcileIssue
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		seen[rec.FileName] = struct{}{}
		size, ok := onDisk[rec.FileName]
		switch {
		case !ok:
			issues = append(issues, ReconcileIssue{
				Type: IssueMissingFile, UserID: u.ID, UserName: u.UserName,
				FileName: rec.FileName, RecordedSize: rec.FileSize,
			})
		case size != rec.FileSize:
			issues = append(issues, ReconcileIssue{
				Type: IssueSizeMismatch, UserID: u.ID, UserName: u.UserName,
				FileName: rec.FileName, RecordedSize: rec.FileSize, ActualSize: size,
			})
		}
	}

	orphans := make([]string, 0)
	for name := range onDisk {
		if _, ok := seen[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		issues = append(issues, ReconcileIssue{
			Type: IssueOrphanedFile, UserID: u.ID, UserName: u.UserName,
			FileName: name, ActualSize: onDisk[name],
		})
	}

	return issues, len(seen) + len(orphans), nil
}
