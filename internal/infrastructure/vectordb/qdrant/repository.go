// Package qdrant provides a VectorDB implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/kinship/internal/domain/ports"
	"github.com/ersonp/kinship/internal/infrastructure/config"
)

var (
	_ ports.VectorDB          = (*Repository)(nil)
	_ ports.CollectionManager = (*Repository)(nil)
)

// Repository implements the VectorDB interface using Qdrant.
type Repository struct {
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
	conn        *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  cfg.Collection,
		conn:        conn,
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection drops the collection with every indexed relationship.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Save stores a relationship with its embedding. Re-saving an edge
// overwrites its point.
func (r *Repository) Save(ctx context.Context, edge ports.IndexedEdge) error {
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         []*pb.PointStruct{edgeToPoint(edge)},
	})
	if err != nil {
		return fmt.Errorf("upserting point: %w", err)
	}
	return nil
}

// SaveBatch upserts several relationships in a single request.
func (r *Repository) SaveBatch(ctx context.Context, edges []ports.IndexedEdge) error {
	if len(edges) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(edges))
	for i, edge := range edges {
		points[i] = edgeToPoint(edge)
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return nil
}

// Search performs a semantic search and returns the closest relationships.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]ports.EdgeMatch, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToMatches(resp.Result), nil
}

// Delete removes a relationship by its edge ID.
func (r *Repository) Delete(ctx context.Context, edgeID int64) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{pointID(edgeID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// Count returns the number of indexed relationships.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// pointID derives a stable point ID from an edge ID. Qdrant accepts
// unsigned integers or UUIDs; a name-based UUID keeps the mapping
// deterministic without exposing the raw row ID.
func pointID(edgeID int64) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("edge:%d", edgeID)))
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()},
	}
}

func edgeToPoint(edge ports.IndexedEdge) *pb.PointStruct {
	return &pb.PointStruct{
		Id: pointID(edge.EdgeID),
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{
					Data: edge.Embedding,
				},
			},
		},
		Payload: map[string]*pb.Value{
			"edge_id": {Kind: &pb.Value_IntegerValue{IntegerValue: edge.EdgeID}},
			"text":    {Kind: &pb.Value_StringValue{StringValue: edge.Text}},
			"subject": {Kind: &pb.Value_StringValue{StringValue: edge.SubjectName}},
			"object":  {Kind: &pb.Value_StringValue{StringValue: edge.ObjectName}},
			"kind":    {Kind: &pb.Value_StringValue{StringValue: edge.Kind}},
			"locale":  {Kind: &pb.Value_StringValue{StringValue: edge.Locale}},
		},
	}
}

// scoredPointsToMatches converts scored points to matches. The edge ID is
// read from the payload since the point ID is a one-way hash.
func scoredPointsToMatches(points []*pb.ScoredPoint) []ports.EdgeMatch {
	matches := make([]ports.EdgeMatch, 0, len(points))
	for _, point := range points {
		matches = append(matches, ports.EdgeMatch{
			EdgeID: getIntValue(point.Payload, "edge_id"),
			Text:   getStringValue(point.Payload, "text"),
			Score:  point.Score,
		})
	}
	return matches
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
