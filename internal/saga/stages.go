package saga

import "context"

// Path names a stage event.
type Path string

const (
	PathStart           Path = "start"
	PathCreate          Path = "create"
	PathManifestCreate  Path = "manifest-create"
	PathParticipants    Path = "populate-participants"
	PathDataCollections Path = "populate-data-collections"
	PathFilenotes       Path = "populate-filenotes"
	PathFiles           Path = "populate-files"
	PathStepChange      Path = "populate-stepchange"
)

// Paths lists every stage path in execution order.
func Paths() []Path {
	return []Path{
		PathStart,
		PathCreate,
		PathManifestCreate,
		PathParticipants,
		PathDataCollections,
		PathFilenotes,
		PathFiles,
		PathStepChange,
	}
}

// PathFor returns the stage path that runs from status s.
func PathFor(s Status) (Path, bool) {
	for _, st := range stageTable {
		if st.requires == s {
			return st.path, true
		}
	}
	return "", false
}

type stageWork func(o *Orchestrator, ctx context.Context, state *State) ([]string, error)

// stage is one row of the state machine: the status it requires, the status
// it advances to and the path published afterwards ("" for the last stage).
type stage struct {
	path     Path
	requires Status
	advances Status
	next     Path
	work     stageWork
}

var stageTable = []stage{
	{path: PathCreate, requires: StatusCreate, advances: StatusManifestCreate, next: PathManifestCreate, work: (*Orchestrator).createMatter},
	{path: PathManifestCreate, requires: StatusManifestCreate, advances: StatusParticipants, next: PathParticipants, work: (*Orchestrator).createManifest},
	{path: PathParticipants, requires: StatusParticipants, advances: StatusDataCollections, next: PathDataCollections, work: (*Orchestrator).populateParticipants},
	{path: PathDataCollections, requires: StatusDataCollections, advances: StatusFilenotes, next: PathFilenotes, work: (*Orchestrator).populateCollections},
	{path: PathFilenotes, requires: StatusFilenotes, advances: StatusFiles, next: PathFiles, work: (*Orchestrator).populateFilenotes},
	{path: PathFiles, requires: StatusFiles, advances: StatusStepChange, next: PathStepChange, work: (*Orchestrator).populateFiles},
	{path: PathStepChange, requires: StatusStepChange, advances: StatusCompleted, work: (*Orchestrator).changeStep},
}

func lookupStage(path Path) (stage, bool) {
	for _, st := range stageTable {
		if st.path == path {
			return st, true
		}
	}
	return stage{}, false
}
