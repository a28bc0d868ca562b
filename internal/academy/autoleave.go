package academy

import (
	"context"
	"fmt"
	"time"

	"github.com/academyops/academyd/internal/jobs"
)

const statusAutoLeave = "auto_leave"

type openCheckIn struct {
	id        int64
	studentID int64
	name      string
	checkIn   string
}

func (c openCheckIn) item(summary string) jobs.Item {
	return jobs.Item{ID: c.id, StudentID: c.studentID, Student: c.name, Summary: summary}
}

// PreviewAutoLeave lists students checked in on the run's day without a
// check-out.
func (s *Service) PreviewAutoLeave(ctx context.Context, opts jobs.Options) (jobs.Preview, error) {
	day := opts.Now.Format(dayLayout)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance
		WHERE day = ? AND check_in_at IS NOT NULL AND check_out_at IS NULL`, day).Scan(&count)
	if err != nil {
		return jobs.Preview{}, fmt.Errorf("academy: count open check-ins: %w", err)
	}

	open, err := s.openCheckIns(ctx, s.db, day, limitOf(opts))
	if err != nil {
		return jobs.Preview{}, err
	}
	list := make([]jobs.Item, 0, len(open))
	for _, c := range open {
		list = append(list, c.item("등원 "+clock(c.checkIn)+", 하원 기록 없음"))
	}
	return jobs.Preview{List: list, Count: count}, nil
}

// PerformAutoLeave checks out every open check-in of the run's day at
// opts.Now, in one transaction.
func (s *Service) PerformAutoLeave(ctx context.Context, opts jobs.Options) (jobs.Performed, error) {
	day := opts.Now.Format(dayLayout)
	checkOut := opts.Now.Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jobs.Performed{}, fmt.Errorf("academy: begin auto-leave: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	open, err := s.openCheckIns(ctx, tx, day, limitOf(opts))
	if err != nil {
		return jobs.Performed{}, err
	}

	done := make([]jobs.Item, 0, len(open))
	for _, c := range open {
		res, err := tx.ExecContext(ctx, `UPDATE attendance SET check_out_at = ?, status = ?
			WHERE id = ? AND check_out_at IS NULL`, checkOut, statusAutoLeave, c.id)
		if err != nil {
			return jobs.Performed{}, fmt.Errorf("academy: close attendance %d: %w", c.id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			done = append(done, c.item("자동 하원 처리 "+clock(c.checkIn)+"~"+opts.Now.Format("15:04")))
		}
	}

	if err := tx.Commit(); err != nil {
		return jobs.Performed{}, fmt.Errorf("academy: commit auto-leave: %w", err)
	}
	s.logger.Info("academy: auto-leave applied", "day", day, "count", len(done))
	return jobs.Performed{Processed: len(done), Preview: done}, nil
}

func (s *Service) openCheckIns(ctx context.Context, q dbQuerier, day string, limit int) ([]openCheckIn, error) {
	rows, err := q.QueryContext(ctx, `SELECT a.id, a.student_id, st.name, a.check_in_at
		FROM attendance a JOIN students st ON st.id = a.student_id
		WHERE a.day = ? AND a.check_in_at IS NOT NULL AND a.check_out_at IS NULL
		ORDER BY a.check_in_at, a.id
		LIMIT ?`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("academy: list open check-ins: %w", err)
	}
	defer rows.Close()

	var out []openCheckIn
	for rows.Next() {
		var c openCheckIn
		if err := rows.Scan(&c.id, &c.studentID, &c.name, &c.checkIn); err != nil {
			return nil, fmt.Errorf("academy: scan check-in: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("academy: list open check-ins: %w", err)
	}
	return out, nil
}

// clock renders a stored RFC 3339 timestamp as HH:MM, or returns it as-is.
func clock(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format("15:04")
	}
	return ts
}
