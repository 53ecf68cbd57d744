package memory

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VectorStore persists embedded conversation turns in sqlite and serves
// similarity queries scoped to one user. Embeddings are stored as
// little-endian float32 blobs; similarity is computed in process, which
// is fine at personal-agent scale (thousands of rows per user).
type VectorStore struct {
	db *sql.DB
}

// NewVectorStore creates a vector store using the given database path.
func NewVectorStore(dbPath string) (*VectorStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &VectorStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewVectorStoreWithDB creates a vector store on an existing connection.
func NewVectorStoreWithDB(db *sql.DB) (*VectorStore, error) {
	s := &VectorStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *VectorStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  BLOB,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
	`)
	return err
}

// Close closes the database connection.
func (s *VectorStore) Close() error {
	return s.db.Close()
}

// Upsert writes or replaces an embedded record for a user.
func (s *VectorStore) Upsert(id, userID string, rec Record, embedding []float32) error {
	_, err := s.db.Exec(`
		INSERT INTO memories (id, user_id, role, content, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			content = excluded.content,
			embedding = excluded.embedding,
			created_at = excluded.created_at
	`, id, userID, rec.Role, rec.Content, encodeEmbedding(embedding),
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// Query returns the user's topK most similar records, highest score
// first. Results are unordered by time; callers wanting a timeline must
// re-sort.
func (s *VectorStore) Query(userID string, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.db.Query(`
		SELECT id, role, content, embedding, created_at
		FROM memories
		WHERE user_id = ? AND embedding IS NOT NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var scored []Match
	for rows.Next() {
		var rec Record
		var blob []byte
		var createdStr string
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Content, &blob, &createdStr); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)

		embedding := decodeEmbedding(blob)
		if len(embedding) == 0 {
			continue
		}
		scored = append(scored, Match{
			Record: rec,
			Score:  cosineSimilarity(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Partial selection sort for top-k by score (fine for small k).
	for i := 0; i < topK && i < len(scored); i++ {
		maxIdx := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Score > scored[maxIdx].Score {
				maxIdx = j
			}
		}
		scored[i], scored[maxIdx] = scored[maxIdx], scored[i]
	}

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count returns the number of stored records for a user.
func (s *VectorStore) Count(userID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// --- embedding helpers ---

func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	result := make([]float32, len(data)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return result
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
