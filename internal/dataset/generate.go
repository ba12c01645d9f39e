package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Channels are the contact channels drawn by Generate.
var Channels = []string{"email", "phone", "web", "visit"}

// GenerateOptions sizes a synthetic contact log.
type GenerateOptions struct {
	Rows  int
	Users int // distinct user_id values; defaults to Rows/10
	Props int // distinct prop_id values; defaults to Rows/20
	Days  int // span of contact_date; defaults to 365
	Start table.Date
	Seed  uint64
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.Users <= 0 {
		o.Users = max(1, o.Rows/10)
	}
	if o.Props <= 0 {
		o.Props = max(1, o.Rows/20)
	}
	if o.Days <= 0 {
		o.Days = 365
	}
	if o.Start == 0 {
		o.Start, _ = table.ParseDate("2014-01-01")
	}
	return o
}

// Generate builds a contact log with columns user_id, prop_id,
// contact_date, price and channel. The same options always produce the
// same table.
func Generate(opts GenerateOptions) (*table.Table, error) {
	if opts.Rows < 0 {
		return nil, bencherr.NewInvalidConfig("rows", "must be >= 0, got %d", opts.Rows)
	}
	opts = opts.withDefaults()
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	users := make([]table.Value, opts.Rows)
	props := make([]table.Value, opts.Rows)
	dates := make([]table.Value, opts.Rows)
	prices := make([]table.Value, opts.Rows)
	channels := make([]table.Value, opts.Rows)

	for i := range opts.Rows {
		users[i] = table.Int(1 + rng.IntN(opts.Users))
		props[i] = table.Int(1 + rng.IntN(opts.Props))
		dates[i] = opts.Start + table.Date(rng.IntN(opts.Days))
		prices[i] = table.Float(math.Round((50_000+rng.Float64()*950_000)*100) / 100)
		channels[i] = table.Str(Channels[rng.IntN(len(Channels))])
	}

	return table.New(
		table.NewColumn("user_id", table.TypeInt, users),
		table.NewColumn("prop_id", table.TypeInt, props),
		table.NewColumn("contact_date", table.TypeDate, dates),
		table.NewColumn("price", table.TypeFloat, prices),
		table.NewColumn("channel", table.TypeString, channels),
	)
}
