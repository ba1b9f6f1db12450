package report

import (
	"context"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

func init() {
	Register(Section{
		Key:   tariffs.Section,
		Name:  "Tariff updates by partner country",
		Order: 10,
		Run: func(ctx context.Context, env *Env, ind industries.Industry) error {
			_, err := env.Tariffs.Update(ctx, ind, "")
			return err
		},
	})
}
