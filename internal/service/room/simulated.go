package room

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"scancapture/internal/logger"
	"scancapture/internal/model"
)

// Fixture is the YAML description of a simulated room.
type Fixture struct {
	Preloaded bool            `yaml:"preloaded"`
	Objects   []FixtureObject `yaml:"objects"`
}

type FixtureObject struct {
	Classification string     `yaml:"classification"`
	UUID           string     `yaml:"uuid"`
	Position       [3]float64 `yaml:"position"`
	Rotation       [4]float64 `yaml:"rotation"`
	Scale          [3]float64 `yaml:"scale"`
	Plane          []float64  `yaml:"plane"`  // width, height
	Volume         []float64  `yaml:"volume"` // width, height, depth
}

// LoadFixture reads a room fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse room fixture: %w", err)
	}
	for i, o := range f.Objects {
		if o.Plane != nil && len(o.Plane) != 2 {
			return nil, fmt.Errorf("object %d: plane needs 2 values, got %d", i, len(o.Plane))
		}
		if o.Volume != nil && len(o.Volume) != 3 {
			return nil, fmt.Errorf("object %d: volume needs 3 values, got %d", i, len(o.Volume))
		}
	}
	return &f, nil
}

// RoomObjects converts the fixture to model objects. Missing ids are generated,
// a zero rotation becomes identity and a zero scale becomes unit scale.
func (f *Fixture) RoomObjects() []model.RoomObject {
	out := make([]model.RoomObject, 0, len(f.Objects))
	for _, o := range f.Objects {
		obj := model.RoomObject{
			Classification: o.Classification,
			UUID:           o.UUID,
			Position:       r3.Vector{X: o.Position[0], Y: o.Position[1], Z: o.Position[2]},
			Rotation:       model.Quat{X: o.Rotation[0], Y: o.Rotation[1], Z: o.Rotation[2], W: o.Rotation[3]},
			Scale:          r3.Vector{X: o.Scale[0], Y: o.Scale[1], Z: o.Scale[2]},
		}
		if obj.Classification == "" {
			obj.Classification = "UNKNOWN"
		}
		if obj.UUID == "" {
			obj.UUID = uuid.NewString()
		}
		if obj.Rotation == (model.Quat{}) {
			obj.Rotation.W = 1
		}
		if obj.Scale == (r3.Vector{}) {
			obj.Scale = r3.Vector{X: 1, Y: 1, Z: 1}
		}
		if len(o.Plane) == 2 {
			obj.PlaneExtent = &[2]float64{o.Plane[0], o.Plane[1]}
		}
		if len(o.Volume) == 3 {
			obj.VolumeExtent = &r3.Vector{X: o.Volume[0], Y: o.Volume[1], Z: o.Volume[2]}
		}
		out = append(out, obj)
	}
	return out
}

// SimulatedGateway plays the room subsystem from a fixture. A capture request
// completes after CaptureDelay; with DropCompletion set the room is stored but
// the completion signal is never sent, as happens when the app is suspended
// during the system room-setup flow.
type SimulatedGateway struct {
	CaptureDelay   time.Duration
	DropCompletion bool

	mu          sync.Mutex
	objects     []model.RoomObject
	stored      bool
	loaded      bool
	subscribers map[int]Events
	nextID      int
	logger      *logger.Logger
}

func NewSimulatedGateway(f *Fixture, captureDelay time.Duration, logger *logger.Logger) *SimulatedGateway {
	g := &SimulatedGateway{
		CaptureDelay: captureDelay,
		subscribers:  make(map[int]Events),
		logger:       logger,
	}
	if f != nil {
		g.objects = f.RoomObjects()
		g.stored = f.Preloaded && len(g.objects) > 0
		g.loaded = g.stored
	}
	return g
}

func (g *SimulatedGateway) RequestCapture() error {
	g.logger.Info("Room capture requested")
	time.AfterFunc(g.CaptureDelay, func() {
		g.mu.Lock()
		if len(g.objects) == 0 {
			g.mu.Unlock()
			g.logger.Warning("Room capture finished without any objects")
			g.emit(Events.OnNoModel)
			return
		}
		g.stored = true
		drop := g.DropCompletion
		if !drop {
			g.loaded = true
		}
		g.mu.Unlock()

		if drop {
			g.logger.Warning("Room capture stored, completion signal dropped")
			return
		}
		g.emit(Events.OnNewModelAvailable)
		g.emit(Events.OnModelLoaded)
	})
	return nil
}

func (g *SimulatedGateway) LoadModel() error {
	g.mu.Lock()
	stored := g.stored
	if stored {
		g.loaded = true
	}
	g.mu.Unlock()

	if !stored {
		g.emit(Events.OnNoModel)
		return nil
	}
	g.emit(Events.OnModelLoaded)
	return nil
}

func (g *SimulatedGateway) QuerySnapshot() []model.RoomObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		return nil
	}
	out := make([]model.RoomObject, len(g.objects))
	copy(out, g.objects)
	return out
}

func (g *SimulatedGateway) IsModelLoaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

func (g *SimulatedGateway) Subscribe(ev Events) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subscribers[id] = ev
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subscribers, id)
			g.mu.Unlock()
		})
	}
}

// SubscriberCount reports how many listeners are registered.
func (g *SimulatedGateway) SubscriberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subscribers)
}

func (g *SimulatedGateway) emit(fn func(Events)) {
	g.mu.Lock()
	subs := make([]Events, 0, len(g.subscribers))
	for _, s := range g.subscribers {
		subs = append(subs, s)
	}
	g.mu.Unlock()

	for _, s := range subs {
		fn(s)
	}
}
