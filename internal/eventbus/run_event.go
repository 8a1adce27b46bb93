package eventbus

// RunEventType names the progress updates published during a generation
// run. The values double as the client-visible stream event names.
type RunEventType string

const (
	RunEventStatus          RunEventType = "status"
	RunEventInit            RunEventType = "init"
	RunEventSectionStart    RunEventType = "section_start"
	RunEventSectionComplete RunEventType = "section_complete"
	RunEventComplete        RunEventType = "complete"
	RunEventError           RunEventType = "error"
)

var runEventTypes = []RunEventType{
	RunEventStatus,
	RunEventInit,
	RunEventSectionStart,
	RunEventSectionComplete,
	RunEventComplete,
	RunEventError,
}

// RunEvent is one progress update for a generation run. Fields are
// populated per type; the JSON shape is the events-stream wire payload.
// RunID routes events internally and is not part of the payload.
type RunEvent struct {
	Type           RunEventType `json:"type"`
	RunID          string       `json:"-"`
	Message        string       `json:"message,omitempty"`
	TotalSections  int          `json:"total_sections,omitempty"`
	Section        string       `json:"section,omitempty"`
	Number         int          `json:"number,omitempty"`
	Total          int          `json:"total,omitempty"`
	Progress       int          `json:"progress,omitempty"`
	Target         string       `json:"target,omitempty"`
	WordCount      int          `json:"word_count,omitempty"`
	Cost           string       `json:"cost,omitempty"`
	TotalWords     int          `json:"total_words,omitempty"`
	TotalCost      string       `json:"total_cost,omitempty"`
	GenerationTime string       `json:"generation_time,omitempty"`
	OutputFile     string       `json:"output_file,omitempty"`
}

type RunEventHandler = Handler[RunEvent]
type RunEventBus = Bus[RunEventType, RunEvent]

func NewRunEventBus() *RunEventBus {
	return NewBus[RunEventType, RunEvent]()
}

// SubscribeAll attaches one handler to every run event type and returns
// a single unsubscribe covering all of them. Stream consumers want the
// whole sequence, not one type.
func SubscribeAll(bus *RunEventBus, handler RunEventHandler) func() {
	unsubs := make([]func(), 0, len(runEventTypes))
	for _, t := range runEventTypes {
		unsubs = append(unsubs, bus.Subscribe(t, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
