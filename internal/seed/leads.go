package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/johnwards/leadtrack/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

type sampleLead struct {
	name    string
	email   string
	company string
	engaged bool
	stage   domain.Stage
	// days before now the lead was created / last contacted.
	// lastContactedDays < 0 means never contacted.
	createdDays       int
	lastContactedDays int
}

var sampleLeads = []sampleLead{
	{"Aria Frost", "aria.frost@polarlabs.io", "Polar Labs", true, domain.StageNegotiation, 45, 2},
	{"Noah Chen", "noah.chen@brightpath.com", "Brightpath", true, domain.StageMeetingScheduled, 30, 5},
	{"Zara West", "zara.west@frostworks.dev", "Frostworks", false, domain.StageNewLead, 3, -1},
	{"Felix Gray", "felix.gray@graymatter.co", "Graymatter", true, domain.StageClosedWon, 90, 1},
	{"Milo Park", "milo.park@parkside.app", "Parkside", false, domain.StageInitialContact, 14, 10},
	{"Ruby Shaw", "ruby.shaw@shawline.net", "Shawline", true, domain.StageProposalSent, 21, 4},
	{"Leo Walsh", "leo.walsh@walshworks.com", "Walshworks", false, domain.StageInitialContact, 12, -1},
	{"Iris Cole", "iris.cole@colecraft.org", "Colecraft", false, domain.StageNewLead, 1, -1},
	{"Finn Hayes", "finn.hayes@hayesharbor.io", "Hayes Harbor", true, domain.StageMeetingScheduled, 25, 7},
}

// Leads inserts the sample leads. Each lead gets a synthesized stage ledger
// walking the pipeline from New Lead to its current stage. Existing emails
// are left untouched so re-seeding never duplicates.
func Leads(ctx context.Context, db *sql.DB) error {
	base := time.Now().UTC().Truncate(time.Hour)

	for _, s := range sampleLeads {
		created := base.AddDate(0, 0, -s.createdDays)

		history, err := buildHistory(s.stage, created)
		if err != nil {
			return fmt.Errorf("build history for %s: %w", s.email, err)
		}
		historyJSON, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("encode history for %s: %w", s.email, err)
		}

		var lastContacted any
		if s.lastContactedDays >= 0 {
			lastContacted = base.AddDate(0, 0, -s.lastContactedDays).Format(timeLayout)
		}

		stageUpdatedAt := history[len(history)-1].ChangedAt

		_, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO leads (name, email, company, engaged, current_stage, stage_updated_at, stage_history, last_contacted, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.name, s.email, s.company, s.engaged, string(s.stage),
			stageUpdatedAt.Format(timeLayout), string(historyJSON), lastContacted,
			created.Format(timeLayout), stageUpdatedAt.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", s.email, err)
		}
	}

	return nil
}

// buildHistory walks the pipeline from the first stage to target, one entry
// every few days starting at created.
func buildHistory(target domain.Stage, created time.Time) ([]domain.StageTransition, error) {
	idx := domain.StageIndex(target)
	if idx < 0 {
		return nil, fmt.Errorf("unknown stage %q", target)
	}

	history, err := domain.Append(nil, nil, domain.Stages[0], created)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= idx; i++ {
		from := domain.Stages[i-1]
		history, err = domain.Append(history, &from, domain.Stages[i], created.AddDate(0, 0, i*3))
		if err != nil {
			return nil, err
		}
	}
	return history, nil
}
