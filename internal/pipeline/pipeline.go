package pipeline

import (
	"github.com/futureCreator/autoship/internal/config"
)

// Stage names, in execution order.
const (
	StageBuild   = "build"
	StageLocate  = "locate"
	StageLaunch  = "launch"
	StageWait    = "wait"
	StagePublish = "publish"
	StageDeploy  = "deploy"
)

// Pipeline is the ordered sequence of stages for one release.
type Pipeline struct {
	Stages []string
}

// Plan derives the stage sequence from cfg. Disabled stages are left out;
// locate and publish always run.
func Plan(cfg *config.Config) *Pipeline {
	var stages []string
	if cfg.Build.Enabled {
		stages = append(stages, StageBuild)
	}
	stages = append(stages, StageLocate)
	if cfg.DevServer.Enabled {
		stages = append(stages, StageLaunch, StageWait)
	}
	stages = append(stages, StagePublish)
	if cfg.Deploy.Enabled {
		stages = append(stages, StageDeploy)
	}
	return &Pipeline{Stages: stages}
}

// Has reports whether the pipeline includes stage.
func (p *Pipeline) Has(stage string) bool {
	for _, s := range p.Stages {
		if s == stage {
			return true
		}
	}
	return false
}
