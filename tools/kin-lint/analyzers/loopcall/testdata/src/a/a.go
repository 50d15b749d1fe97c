package a

import "context"

type Person struct{ ID int64 }

type Directory interface {
	FindPerson(ctx context.Context, id int64) (*Person, error)
	FindPeopleByIDs(ctx context.Context, ids []int64) ([]Person, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorDB interface {
	Save(ctx context.Context, id int64) error
}

func bad(ctx context.Context, ids []int64, dir Directory, e Embedder, db VectorDB) {
	for _, id := range ids {
		dir.FindPerson(ctx, id) // want "potential N\\+1: FindPerson called inside loop - use FindPeopleByIDs"
		db.Save(ctx, id)        // want "potential N\\+1: Save called inside loop - use SaveBatch"
	}
	for i := 0; i < 3; i++ {
		e.Embed(ctx, "Alice mother Bob") // want "potential N\\+1: Embed called inside loop - use EmbedBatch"
	}
}

func good(ctx context.Context, ids []int64, dir Directory) {
	dir.FindPeopleByIDs(ctx, ids)
	for _, id := range ids {
		_ = id > 0
	}
}
