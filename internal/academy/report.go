package academy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/academyops/academyd/internal/jobs"
)

type lessonLog struct {
	id        int64
	studentID int64
	name      string
	phone     string
	day       string
	content   string
	homework  string
	teacher   string
}

// PreviewDailyReport lists the run day's unsent lesson logs for active
// students with a parent phone number.
func (s *Service) PreviewDailyReport(ctx context.Context, opts jobs.Options) (jobs.Preview, error) {
	day := opts.Now.Format(dayLayout)

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lesson_logs l
		JOIN students st ON st.id = l.student_id
		WHERE l.day = ? AND l.report_sent_at IS NULL AND st.active = 1 AND st.parent_phone <> ''`,
		day).Scan(&count)
	if err != nil {
		return jobs.Preview{}, fmt.Errorf("academy: count unsent reports: %w", err)
	}

	logs, err := s.unsentLogs(ctx, day, limitOf(opts))
	if err != nil {
		return jobs.Preview{}, err
	}
	list := make([]jobs.Item, 0, len(logs))
	for _, l := range logs {
		list = append(list, l.item(s.message(l)))
	}
	return jobs.Preview{List: list, Count: count}, nil
}

// PerformDailyReport sends one message per unsent log and marks each log
// right after its send succeeds. It stops at the first failed send, so a
// retry resumes without sending anything twice.
func (s *Service) PerformDailyReport(ctx context.Context, opts jobs.Options) (jobs.Performed, error) {
	day := opts.Now.Format(dayLayout)
	logs, err := s.unsentLogs(ctx, day, limitOf(opts))
	if err != nil {
		return jobs.Performed{}, err
	}

	sent := make([]jobs.Item, 0, len(logs))
	for _, l := range logs {
		text := s.message(l)
		msg := Message{To: l.phone, Text: text, StudentID: l.studentID, LessonLogID: l.id}
		if err := s.notifier.Send(ctx, msg); err != nil {
			return jobs.Performed{}, fmt.Errorf("academy: send report for lesson log %d (%d of %d sent): %w",
				l.id, len(sent), len(logs), err)
		}
		if _, err := s.db.ExecContext(ctx,
			"UPDATE lesson_logs SET report_sent_at = ? WHERE id = ?",
			time.Now().UTC().Format(time.RFC3339), l.id,
		); err != nil {
			return jobs.Performed{}, fmt.Errorf("academy: mark lesson log %d sent: %w", l.id, err)
		}
		sent = append(sent, l.item(text))
	}

	s.logger.Info("academy: daily reports sent", "day", day, "count", len(sent))
	return jobs.Performed{Processed: len(sent), Preview: sent}, nil
}

func (s *Service) unsentLogs(ctx context.Context, day string, limit int) ([]lessonLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT l.id, l.student_id, st.name, st.parent_phone,
			l.day, l.content, l.homework, l.teacher
		FROM lesson_logs l JOIN students st ON st.id = l.student_id
		WHERE l.day = ? AND l.report_sent_at IS NULL AND st.active = 1 AND st.parent_phone <> ''
		ORDER BY l.id
		LIMIT ?`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("academy: list unsent reports: %w", err)
	}
	defer rows.Close()

	var out []lessonLog
	for rows.Next() {
		var l lessonLog
		if err := rows.Scan(&l.id, &l.studentID, &l.name, &l.phone, &l.day, &l.content, &l.homework, &l.teacher); err != nil {
			return nil, fmt.Errorf("academy: scan lesson log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("academy: list unsent reports: %w", err)
	}
	return out, nil
}

func (l lessonLog) item(summary string) jobs.Item {
	return jobs.Item{
		ID:        l.id,
		StudentID: l.studentID,
		Student:   l.name,
		Target:    MaskPhone(l.phone),
		Summary:   summary,
	}
}

// message renders the parent-facing report text.
func (s *Service) message(l lessonLog) string {
	var b strings.Builder
	if s.name != "" {
		fmt.Fprintf(&b, "[%s] ", s.name)
	}
	fmt.Fprintf(&b, "%s 학생 %s 수업 안내\n", l.name, l.day)
	fmt.Fprintf(&b, "수업 내용: %s\n", orDash(l.content))
	fmt.Fprintf(&b, "과제: %s", orDash(l.homework))
	if l.teacher != "" {
		fmt.Fprintf(&b, "\n담당 선생님: %s", l.teacher)
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// MaskPhone hides the middle digits of a phone number: 010-1234-5678
// becomes 010-****-5678.
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	n := len(digits)
	if n < 7 {
		return strings.Repeat("*", n)
	}
	head := string(digits[:3])
	tail := string(digits[n-4:])
	return head + "-" + strings.Repeat("*", n-7) + "-" + tail
}
