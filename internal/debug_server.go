package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	goruntime "runtime"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"

	"muc-lab/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

// RosterSource is what the inspector needs from the room registry.
type RosterSource interface {
	Rooms() []*domain.RoomState
}

// OccupantRow is one occupant of one room, flattened for display.
type OccupantRow struct {
	Nick     string   `json:"nick"`
	Occupant string   `json:"occupant"`
	Sessions []string `json:"sessions"`
}

type RoomReport struct {
	Address   string        `json:"address"`
	Occupants []OccupantRow `json:"occupants"`
}

// OccupancyReport is the full inspector payload, served as HTML and JSON.
type OccupancyReport struct {
	Rooms []RoomReport   `json:"rooms"`
	Stats map[string]any `json:"stats"`
}

// StartDebugServer serves a read-only occupancy inspector: HTML at the
// endpoint, JSON at endpoint+".json" for the occupants CLI. Rooms are
// immortal by design, so the empty-room count is part of the stats to keep
// the growth observable.
func StartDebugServer(log *slog.Logger, source RosterSource, port int, endpoint string) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	started := time.Now()

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, buildReport(source, started))
	})

	mux.HandleFunc(endpoint+".json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(buildReport(source, started))
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux); err != nil {
			log.Warn("Occupancy inspector stopped", "error", err)
		}
	}()
}

func buildReport(source RosterSource, started time.Time) OccupancyReport {
	states := source.Rooms()
	rooms := lo.Map(states, func(state *domain.RoomState, _ int) RoomReport {
		return RoomReport{
			Address: state.Address().String(),
			Occupants: lo.Map(state.Participants(), func(p domain.ParticipantInfo, _ int) OccupantRow {
				return OccupantRow{
					Nick:     p.Nick,
					Occupant: p.Occupant.String(),
					Sessions: lo.Map(p.Sessions, func(s domain.Address, _ int) string { return s.String() }),
				}
			}),
		}
	})

	empty := lo.CountBy(rooms, func(room RoomReport) bool { return len(room.Occupants) == 0 })

	return OccupancyReport{
		Rooms: rooms,
		Stats: map[string]any{
			"rooms_total":  len(rooms),
			"rooms_empty":  empty,
			"goroutines":   goruntime.NumGoroutine(),
			"uptime":       time.Since(started).Round(time.Second).String(),
			"rss_mb":       selfRSSMb(),
			"generated_at": time.Now().Format(time.RFC822),
		},
	}
}

// selfRSSMb reads the process resident set size, best effort.
func selfRSSMb() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.RSS / (1024 * 1024)
}
