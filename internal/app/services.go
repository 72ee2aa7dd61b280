package app

import (
	"fmt"

	"github.com/omniquery/omniquery-backend/internal/agents"
	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/platform/localmedia"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/queries"
	"github.com/omniquery/omniquery-backend/internal/store"
	"github.com/omniquery/omniquery-backend/internal/supervisor"
)

type Services struct {
	Model    modelapi.Client
	Tools    localmedia.Tools
	Recorder store.Recorder
	Crew     *crew.Crew

	ImageAgent    *agents.ImageAgent
	DocumentAgent *agents.DocumentAgent
	AudioAgent    *agents.AudioAgent
	VideoAgent    *agents.VideoAgent

	QueryStore   *queries.Store
	QueryRunner  *queries.Runner
	QueryJanitor *queries.Janitor
	MCP          *supervisor.Supervisor
}

func wireServices(log *logger.Logger, cfg Config, r Repos) (Services, error) {
	var s Services

	model, err := modelapi.NewClient(log)
	if err != nil {
		return s, fmt.Errorf("init model client: %w", err)
	}
	s.Model = model
	s.Tools = localmedia.New(log)
	s.Recorder = store.NewRecorder(r.Images, r.Documents, r.Videos, r.Audios, r.Tracking, log)

	crewCfg, err := crew.LoadConfig(cfg.CrewConfigDir)
	if err != nil {
		return s, fmt.Errorf("load crew config: %w", err)
	}
	s.Crew = crew.New(log, model, crewCfg)

	deps := agents.Deps{
		Log:      log,
		Model:    model,
		Tools:    s.Tools,
		Recorder: s.Recorder,
		Enhancer: s.Crew,
		DataDir:  cfg.DataDir,
	}
	s.ImageAgent = agents.NewImageAgent(deps)
	s.DocumentAgent = agents.NewDocumentAgent(deps)
	s.AudioAgent = agents.NewAudioAgent(deps)
	s.VideoAgent = agents.NewVideoAgent(deps)

	s.QueryStore = queries.NewStore()
	s.QueryRunner = queries.NewRunner(s.QueryStore, s.Crew, log)
	s.QueryJanitor = queries.NewJanitor(s.QueryStore, log)
	s.MCP = supervisor.New(supervisor.SpecsFromEnv(), log)

	return s, nil
}
