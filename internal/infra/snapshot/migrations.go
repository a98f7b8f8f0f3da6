package snapshot

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/John-Robertt/movienotes/internal/infra/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose 的配置是包级全局状态；只初始化一次。
var gooseOnce sync.Once
var gooseErr error

func migrate(db *sql.DB) error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(embedMigrations)
		goose.SetLogger(gooseLogger{log: logx.Get("snapshot")})
		gooseErr = goose.SetDialect("sqlite3")
	})
	if gooseErr != nil {
		return fmt.Errorf("设置 goose dialect 失败：%w", gooseErr)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("执行 snapshot 迁移失败：%w", err)
	}
	return nil
}

// gooseLogger 把 goose 的输出转到 logx（DEBUG 级别；stdout 保留给 report JSON）。
type gooseLogger struct {
	log logx.Logger
}

func (l gooseLogger) Fatal(v ...interface{}) { l.log.Emit(logx.FATAL, "%s", fmt.Sprint(v...)) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Emit(logx.FATAL, format, v...)
}
func (l gooseLogger) Print(v ...interface{})   { l.log.Emit(logx.DEBUG, "%s", fmt.Sprint(v...)) }
func (l gooseLogger) Println(v ...interface{}) { l.log.Emit(logx.DEBUG, "%s", fmt.Sprint(v...)) }
func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Emit(logx.DEBUG, format, v...)
}
