package lease

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// WorkerID возвращает идентификатор этого worker-процесса.
//
// В кластере идентификатором служит имя пода из POD_NAME. Вне
// кластера переменная не задана — берём hostname со случайным
// суффиксом, чтобы два локальных процесса не выглядели одним
// владельцем leases.
func WorkerID(logger *slog.Logger) string {
	if name := os.Getenv("POD_NAME"); name != "" {
		return name
	}

	host, err := os.Hostname()
	if err != nil {
		host = "chronos-worker"
	}

	id := host + "-" + uuid.New().String()[:8]
	logger.Warn("POD_NAME is not set, using generated worker id", "worker_id", id)
	return id
}
