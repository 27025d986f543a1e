package config

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/kelseyhightower/envconfig"

	"activity-collector/internal/domain"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Slack struct {
		Token string `envconfig:"SLACK_TOKEN"`
		// Channels: идентификатор канала -> команда
		// (SLACK_CHANNELS="C0123:toolchain,C0456:foa").
		Channels map[string]string `envconfig:"SLACK_CHANNELS"`
		// DisplayNames: идентификатор пользователя -> отображаемое имя.
		DisplayNames map[string]string `envconfig:"SLACK_DISPLAY_NAMES"`
	} `envconfig:""`

	Jira struct {
		URL      string `envconfig:"JIRA_URL"`
		Username string `envconfig:"JIRA_USERNAME"`
		Token    string `envconfig:"JIRA_TOKEN"`
		Project  string `envconfig:"JIRA_PROJECT" default:"Automotive Feature Teams"`
		// SprintField — идентификатор кастом-поля со спринтами.
		SprintField string `envconfig:"JIRA_SPRINT_FIELD" default:"customfield_12310940"`
		// Teams: команда -> значение поля AssignedTeam.
		Teams map[string]string `envconfig:"JIRA_TEAMS"`
		// StatusFilter — человекочитаемый фильтр статусов по умолчанию.
		StatusFilter string `envconfig:"JIRA_STATUS_FILTER" default:"all in progress"`
	} `envconfig:""`

	Snapshots struct {
		Path   string        `envconfig:"SNAPSHOTS_PATH" default:"data/snapshots.db"`
		MaxAge time.Duration `envconfig:"SNAPSHOTS_MAX_AGE" default:"24h"`
	} `envconfig:""`

	Collect struct {
		UnitWorkers  int           `envconfig:"COLLECT_UNIT_WORKERS" default:"4"`
		ReplyWorkers int           `envconfig:"COLLECT_REPLY_WORKERS" default:"4"`
		Timeout      time.Duration `envconfig:"COLLECT_TIMEOUT" default:"60s"`
		LockTTL      time.Duration `envconfig:"COLLECT_LOCK_TTL" default:"2m"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Collect string `envconfig:"COLLECT_QUEUE_KEY" default:"collect_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Units собирает список юнитов сбора: по одному на канал и по одному
// на тикет-группу команды. Порядок детерминированный.
func (cfg AppConfig) Units() []domain.SourceUnit {
	units := make([]domain.SourceUnit, 0, len(cfg.Slack.Channels)+len(cfg.Jira.Teams))
	for channelID, team := range cfg.Slack.Channels {
		units = append(units, domain.SourceUnit{
			ID:        fmt.Sprintf("slack:%s", channelID),
			Kind:      domain.UnitChannel,
			Team:      team,
			ChannelID: channelID,
			MaxAge:    cfg.Snapshots.MaxAge,
		})
	}
	for team, assigned := range cfg.Jira.Teams {
		units = append(units, domain.SourceUnit{
			ID:   fmt.Sprintf("jira:%s", team),
			Kind: domain.UnitTickets,
			Team: team,
			Query: domain.TicketQuery{
				Project:      cfg.Jira.Project,
				AssignedTeam: assigned,
				StatusFilter: cfg.Jira.StatusFilter,
			},
			MaxAge: cfg.Snapshots.MaxAge,
		})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units
}

// UnitsForTeam возвращает юниты одной команды: её канал и тикет-группу.
func (cfg AppConfig) UnitsForTeam(team string) []domain.SourceUnit {
	var units []domain.SourceUnit
	for _, unit := range cfg.Units() {
		if unit.Team == team {
			units = append(units, unit)
		}
	}
	return units
}

// UnitByID находит юнит по идентификатору.
func (cfg AppConfig) UnitByID(id string) (domain.SourceUnit, bool) {
	for _, unit := range cfg.Units() {
		if unit.ID == id {
			return unit, true
		}
	}
	return domain.SourceUnit{}, false
}
