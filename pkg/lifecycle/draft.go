package lifecycle

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/kfsoftware/agritrace/pkg/batch"
)

var (
	origins    = []string{"Mysore", "Bangalore", "Coimbatore", "Ratnagiri", "Pune"}
	farms      = []string{"GreenFarm-001", "SunriseFarm-002", "OrganicFarm-003", "GoldenFields-004"}
	exporters  = []string{"ABC Exports", "XYZ Traders", "Global Foods", "AgriLink Exports"}
	colors     = []string{"Yellow", "Green", "Red", "Orange"}
	conditions = []string{"Fresh", "Good", "Excellent", "Premium"}
	farmers    = []string{"Ramesh K", "Sita M", "Rajesh P", "Lakshmi R"}
)

// Generator produces illustrative draft batches for demo data.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rnd.Intn(len(pool))]
}

// Draft returns a pending batch; createdBy falls back to a random farmer.
func (g *Generator) Draft(createdBy string, now time.Time) *batch.Batch {
	g.mu.Lock()
	defer g.mu.Unlock()
	if createdBy == "" {
		createdBy = g.pick(farmers)
	}
	temperature := math.Round((20+g.rnd.Float64()*15-5)*10) / 10
	return &batch.Batch{
		Origin:      g.pick(origins),
		Farm:        g.pick(farms),
		Exporter:    g.pick(exporters),
		ContentHash: fmt.Sprintf("Qm%d%d", 100000+g.rnd.Intn(900000), 1000+g.rnd.Intn(9000)),
		Color:       g.pick(colors),
		Temperature: &temperature,
		Condition:   g.pick(conditions),
		Status:      batch.StatusPending,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     []*batch.InspectionRecord{},
	}
}
