package vectorstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/graph"
)

const qdrantPageSize = 256

// Payload keys stored with every point.
const (
	payloadText       = "text"
	payloadBlockID    = "block_id"
	payloadPageID     = "page_id"
	payloadPageName   = "page_name"
	payloadChunkIndex = "chunk_index"
)

// QdrantBackend persists snapshots in Qdrant. A handle ID is a collection alias;
// every save writes a new physical collection and then moves the alias onto it,
// so readers never see a half-written index.
type QdrantBackend struct {
	host string
	port int
}

var _ Backend = (*QdrantBackend)(nil)

// NewQdrantBackend creates a backend for the Qdrant instance at urlStr.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantBackend(urlStr string) (*QdrantBackend, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	return &QdrantBackend{host: host, port: port}, nil
}

// connect opens a client authenticated with creds. Credentials are per call,
// so the client is not cached.
func (b *QdrantBackend) connect(creds Credentials) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   b.host,
		Port:   b.port,
		APIKey: creds.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return client, nil
}

// Save writes snap into a fresh collection and points the handle alias at it.
func (b *QdrantBackend) Save(ctx context.Context, snap *Snapshot, creds Credentials, handleID string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if snap == nil || snap.Dimension <= 0 {
		return "", fmt.Errorf("snapshot has no vectors")
	}

	id := handleID
	if id == "" {
		id = uuid.New().String()
	}
	physical := physicalCollectionName(id, time.Now())

	client, err := b.connect(creds)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	logger.InfoContext(ctx, "creating collection", "collection", physical, "vector_size", snap.Dimension)
	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: physical,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(snap.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return "", mapQdrantError("failed to create collection", err)
	}

	if err := b.swap(ctx, client, snap, id, physical); err != nil {
		if delErr := client.DeleteCollection(ctx, physical); delErr != nil {
			logger.WarnContext(ctx, "failed to clean up collection", "collection", physical, "error", delErr)
		}
		return "", err
	}

	logger.InfoContext(ctx, "index saved", "handle", id, "collection", physical, "points", len(snap.Entries))
	return id, nil
}

// swap fills the physical collection, moves the alias and drops the previous collection.
func (b *QdrantBackend) swap(ctx context.Context, client *qdrant.Client, snap *Snapshot, alias, physical string) error {
	logger := contextutil.LoggerFromContext(ctx)

	wait := true
	for start := 0; start < len(snap.Entries); start += qdrantPageSize {
		end := min(start+qdrantPageSize, len(snap.Entries))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, e := range snap.Entries[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(e.ID),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(entryPayload(e)),
			})
		}

		_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: physical,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to upsert points", "collection", physical, "count", len(points), "error", err)
			return mapQdrantError("failed to upsert points", err)
		}
	}

	aliases, err := client.ListAliases(ctx)
	if err != nil {
		return mapQdrantError("failed to list aliases", err)
	}
	var previous string
	for _, a := range aliases {
		if a.GetAliasName() == alias {
			previous = a.GetCollectionName()
		}
	}

	actions := make([]*qdrant.AliasOperations, 0, 2)
	if previous != "" {
		actions = append(actions, qdrant.NewAliasDelete(alias))
	}
	actions = append(actions, qdrant.NewAliasCreate(alias, physical))
	if err := client.UpdateAliases(ctx, actions); err != nil {
		return mapQdrantError("failed to update alias", err)
	}

	if previous != "" && previous != physical {
		if err := client.DeleteCollection(ctx, previous); err != nil {
			logger.WarnContext(ctx, "failed to delete previous collection", "collection", previous, "error", err)
		}
	}
	return nil
}

// Load reads every point of the collection behind the handle alias.
func (b *QdrantBackend) Load(ctx context.Context, handleID string, creds Credentials) (*Snapshot, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if handleID == "" {
		return nil, fmt.Errorf("no index handle: %w", apperrors.ErrNotFound)
	}

	client, err := b.connect(creds)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()

	info, err := client.GetCollectionInfo(ctx, handleID)
	if err != nil {
		return nil, mapQdrantError("failed to get collection info", err)
	}
	snap := &Snapshot{Description: handleID, Dimension: vectorSize(info)}

	exact := true
	count, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: handleID,
		Exact:          &exact,
	})
	if err != nil {
		return nil, mapQdrantError("failed to count points", err)
	}
	snap.Entries = make([]Entry, 0, count)

	// Scroll does not return the next page offset, so one extra point is
	// requested and used as the offset of the following page.
	limit := uint32(qdrantPageSize + 1)
	var offset *qdrant.PointId
	for {
		points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: handleID,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, mapQdrantError("failed to scroll points", err)
		}

		page := points
		if len(points) > qdrantPageSize {
			page = points[:qdrantPageSize]
		}
		for _, p := range page {
			entry, err := entryFromPoint(p)
			if err != nil {
				return nil, err
			}
			snap.Entries = append(snap.Entries, entry)
		}

		if len(points) <= qdrantPageSize {
			break
		}
		offset = points[qdrantPageSize].GetId()
	}

	if snap.Dimension == 0 && len(snap.Entries) > 0 {
		snap.Dimension = len(snap.Entries[0].Vector)
	}

	logger.InfoContext(ctx, "index read from Qdrant", "handle", handleID, "points", len(snap.Entries))
	return snap, nil
}

func physicalCollectionName(alias string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return alias + "_" + strings.ToLower(id.String())
}

func vectorSize(info *qdrant.CollectionInfo) int {
	if config := info.GetConfig(); config != nil && config.Params != nil {
		if vectorsConfig := config.Params.GetVectorsConfig(); vectorsConfig != nil {
			if params := vectorsConfig.GetParams(); params != nil {
				return int(params.Size)
			}
		}
	}
	return 0
}

func entryPayload(e Entry) map[string]any {
	return map[string]any{
		payloadText:       e.Chunk.Text,
		payloadBlockID:    e.Chunk.Metadata.BlockID,
		payloadPageID:     e.Chunk.Metadata.PageID,
		payloadPageName:   e.Chunk.Metadata.PageName,
		payloadChunkIndex: int64(e.Chunk.Index),
	}
}

func entryFromPoint(p *qdrant.RetrievedPoint) (Entry, error) {
	id := p.GetId().GetUuid()
	if id == "" {
		id = strconv.FormatUint(p.GetId().GetNum(), 10)
	}

	vec := p.GetVectors().GetVector()
	data := vec.GetDense().GetData()
	if len(data) == 0 {
		data = vec.GetData()
	}
	if len(data) == 0 {
		return Entry{}, fmt.Errorf("point %s has no dense vector", id)
	}

	meta := convertPayloadToMap(p.GetPayload())
	text, _ := meta[payloadText].(string)
	blockID, _ := meta[payloadBlockID].(string)
	pageID, _ := meta[payloadPageID].(string)
	pageName, _ := meta[payloadPageName].(string)
	index, _ := meta[payloadChunkIndex].(int64)

	return Entry{
		ID:     id,
		Vector: data,
		Chunk: graph.Chunk{
			Text:  text,
			Index: int(index),
			Metadata: graph.Metadata{
				BlockID:  blockID,
				PageID:   pageID,
				PageName: pageName,
			},
		},
	}, nil
}

// mapQdrantError keeps auth and not-found responses recognizable to callers.
func mapQdrantError(msg string, err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return apperrors.Auth(msg, err)
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %w", msg, apperrors.ErrNotFound, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return fmt.Errorf("%s: %w: %w", msg, apperrors.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// convertPayloadToMap converts Qdrant payload to map[string]any.
func convertPayloadToMap(payload map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		result[k] = convertValue(v)
	}
	return result
}

// convertValue converts a Qdrant Value to Go any type.
func convertValue(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertValue(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
