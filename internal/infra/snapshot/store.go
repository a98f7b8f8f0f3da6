package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/fsx"
)

// timeLayout 定宽，created_at 按字符串排序即按时间排序。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FileName 是 snapshot 数据库在输出目录下的文件名。
const FileName = "snapshot.db"

// ErrRunNotFound 表示指定的 run 不存在（或库里还没有任何 run）。
var ErrRunNotFound = errors.New("snapshot 中不存在该 run")

// Store 是无损快照：每次运行的 ResultSet 原样存一份，可按 run_id 取回。
type Store struct {
	db   *sql.DB
	path string
}

// Open 打开（必要时创建）dir 下的 snapshot.db，并执行内嵌迁移。
func Open(dir string) (*Store, error) {
	if err := fsx.EnsureDir(dir); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)

	dsn, err := dataSourceName(path)
	if err != nil {
		return nil, fmt.Errorf("打开 snapshot 失败：%w", err)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 snapshot 失败：%w", err)
	}
	// sqlite 单写者；一个连接足够，也避免 database is locked。
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// dataSourceName 把文件路径转成 sqlite URI：路径里的 ? # % 必须转义，否则会被当成参数或片段分隔符。
func dataSourceName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		// Windows 盘符路径：file:///C:/...
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String() + "?_foreign_keys=on&_busy_timeout=5000", nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

const insertRecord = `INSERT INTO records
	(run_id, position, query, status, title, year, rating, genre, country, director, "cast", kind, cover_url, plot, synopsis)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Save 在一个事务里写入整次运行；同一个 runID 重复保存会失败。
func (s *Store) Save(ctx context.Context, runID string, createdAt time.Time, rs domain.ResultSet) error {
	if runID == "" {
		return errors.New("run_id 不能为空")
	}
	if len(rs.Query) != len(rs.Records) || len(rs.Status) != len(rs.Records) {
		return fmt.Errorf("ResultSet 列长度不一致：query=%d records=%d status=%d", len(rs.Query), len(rs.Records), len(rs.Status))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (run_id, created_at, total) VALUES (?, ?, ?)`,
		runID, createdAt.UTC().Format(timeLayout), rs.Len()); err != nil {
		return fmt.Errorf("写入 run 失败：%w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rs.Records {
		args := []any{runID, i, rs.Query[i], string(rs.Status[i])}
		for _, v := range r.Values() {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("写入第 %d 条记录失败：%w", i+1, err)
		}
	}
	return tx.Commit()
}

// Load 按 run_id 取回 ResultSet（保持原始顺序）。
func (s *Store) Load(ctx context.Context, runID string) (domain.ResultSet, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT total FROM runs WHERE run_id = ?`, runID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResultSet{}, fmt.Errorf("%w：%s", ErrRunNotFound, runID)
	}
	if err != nil {
		return domain.ResultSet{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT query, status, title, year, rating, genre, country, director, "cast", kind, cover_url, plot, synopsis
		FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return domain.ResultSet{}, err
	}
	defer rows.Close()

	rs := domain.ResultSet{
		Query:   make([]string, 0, total),
		Records: make([]domain.MovieRecord, 0, total),
		Status:  make([]domain.LookupStatus, 0, total),
	}
	for rows.Next() {
		var (
			q, st string
			r     domain.MovieRecord
		)
		if err := rows.Scan(&q, &st, &r.Title, &r.Year, &r.Rating, &r.Genre, &r.Country, &r.Director,
			&r.Cast, &r.Kind, &r.CoverURL, &r.Plot, &r.Synopsis); err != nil {
			return domain.ResultSet{}, err
		}
		rs.Append(q, r, domain.LookupStatus(st))
	}
	if err := rows.Err(); err != nil {
		return domain.ResultSet{}, err
	}
	if rs.Len() != total {
		return domain.ResultSet{}, fmt.Errorf("snapshot 不完整：期望 %d 条，实际 %d 条", total, rs.Len())
	}
	return rs, nil
}

// LatestRunID 返回最近一次保存的 run_id。
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	return id, err
}

// LoadLatest 取回最近一次运行的 ResultSet。
func (s *Store) LoadLatest(ctx context.Context) (string, domain.ResultSet, error) {
	id, err := s.LatestRunID(ctx)
	if err != nil {
		return "", domain.ResultSet{}, err
	}
	rs, err := s.Load(ctx, id)
	return id, rs, err
}
