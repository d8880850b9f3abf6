package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

// Config holds SQLiteStore configuration.
type Config struct {
	DataDir string
	Chain   network.Chain
	Logger  *logging.Logger
}

// SQLiteStore is the concrete Store adapter for one chain.
// Bitcoin and sidechain wallets each open their own SQLiteStore instance
// against separate database files, matching the chain-tagged data model.
type SQLiteStore struct {
	db    *sql.DB
	chain network.Chain
	log   *logging.Logger
	mu    sync.RWMutex
}

// New opens (creating if necessary) the SQLite-backed store for cfg.Chain.
func New(cfg *Config) (*SQLiteStore, error) {
	if cfg.Chain == "" {
		return nil, fmt.Errorf("store: chain is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault().Component("store")
	}

	dataDir := expandPath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("%s.db", cfg.Chain))
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, chain: cfg.Chain, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func expandPath(p string) string {
	if p == "" {
		return "."
	}
	if p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Chain reports the network family this store instance is scoped to.
func (s *SQLiteStore) Chain() network.Chain { return s.chain }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cached_txs (
		txid TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS script_index (
		script_hex TEXT PRIMARY KEY,
		branch INTEGER NOT NULL,
		idx INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS unblinded (
		txid TEXT NOT NULL,
		vout INTEGER NOT NULL,
		asset TEXT NOT NULL,
		value INTEGER NOT NULL,
		abf TEXT NOT NULL,
		vbf TEXT NOT NULL,
		PRIMARY KEY (txid, vout)
	);

	CREATE TABLE IF NOT EXISTS spent_outpoints (
		txid TEXT NOT NULL,
		vout INTEGER NOT NULL,
		PRIMARY KEY (txid, vout)
	);

	CREATE TABLE IF NOT EXISTS indices (
		kind TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		blob TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS asset_registry_cache (
		key TEXT PRIMARY KEY,
		blob TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS headers (
		height INTEGER PRIMARY KEY,
		blob TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}
	for _, kind := range []walletdata.IndexKind{walletdata.IndexExternal, walletdata.IndexInternal} {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO indices (kind, value) VALUES (?, 0)`, string(kind)); err != nil {
			return err
		}
	}
	return nil
}

// WalletTxIDs returns every txid the wallet has cached.
func (s *SQLiteStore) WalletTxIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT txid FROM cached_txs`)
	if err != nil {
		return nil, fmt.Errorf("query wallet txids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CachedTx returns the cached transaction for txid, or nil if absent.
func (s *SQLiteStore) CachedTx(txid string) (*walletdata.CachedTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM cached_txs WHERE txid = ?`, txid).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cached tx %s: %w", txid, err)
	}

	var tx walletdata.CachedTx
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		return nil, fmt.Errorf("decode cached tx %s: %w", txid, err)
	}
	return &tx, nil
}

// PutCachedTx inserts or replaces a cached transaction.
func (s *SQLiteStore) PutCachedTx(tx *walletdata.CachedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode cached tx %s: %w", tx.TxID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO cached_txs (txid, payload) VALUES (?, ?)
		ON CONFLICT(txid) DO UPDATE SET payload = excluded.payload
	`, tx.TxID, string(payload))
	return err
}

// BitcoinTx returns the raw cached Bitcoin transaction data for txid.
func (s *SQLiteStore) BitcoinTx(txid string) (*walletdata.BitcoinTxData, error) {
	tx, err := s.CachedTx(txid)
	if err != nil || tx == nil {
		return nil, err
	}
	return tx.Bitcoin, nil
}

// SidechainTx returns the raw cached sidechain transaction data for txid.
func (s *SQLiteStore) SidechainTx(txid string) (*walletdata.SidechainTxData, error) {
	tx, err := s.CachedTx(txid)
	if err != nil || tx == nil {
		return nil, err
	}
	return tx.Sidechain, nil
}

// SpentSet returns every outpoint the wallet has observed being spent.
func (s *SQLiteStore) SpentSet() (map[walletdata.Outpoint]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT txid, vout FROM spent_outpoints`)
	if err != nil {
		return nil, fmt.Errorf("query spent set: %w", err)
	}
	defer rows.Close()

	out := make(map[walletdata.Outpoint]struct{})
	for rows.Next() {
		var txid string
		var vout uint32
		if err := rows.Scan(&txid, &vout); err != nil {
			return nil, err
		}
		out[walletdata.Outpoint{Chain: s.chain, TxID: txid, Vout: vout}] = struct{}{}
	}
	return out, rows.Err()
}

// RecordSpent marks an outpoint as spent.
func (s *SQLiteStore) RecordSpent(op walletdata.Outpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO spent_outpoints (txid, vout) VALUES (?, ?)
	`, op.TxID, op.Vout)
	return err
}

// ScriptSet returns every scriptPubKey (hex) the wallet recognizes as its own.
func (s *SQLiteStore) ScriptSet() (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT script_hex FROM script_index`)
	if err != nil {
		return nil, fmt.Errorf("query script set: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var scriptHex string
		if err := rows.Scan(&scriptHex); err != nil {
			return nil, err
		}
		out[scriptHex] = struct{}{}
	}
	return out, rows.Err()
}

// RecordScript registers a scriptPubKey as wallet-owned at path.
func (s *SQLiteStore) RecordScript(scriptPubKey []byte, path walletdata.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scriptHex := hex.EncodeToString(scriptPubKey)
	_, err := s.db.Exec(`
		INSERT INTO script_index (script_hex, branch, idx) VALUES (?, ?, ?)
		ON CONFLICT(script_hex) DO UPDATE SET branch = excluded.branch, idx = excluded.idx
	`, scriptHex, path.Branch, path.Index)
	return err
}

// DerivationPath resolves a wallet-owned scriptPubKey to the path that
// derives it.
func (s *SQLiteStore) DerivationPath(scriptPubKey []byte) (walletdata.Path, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scriptHex := hex.EncodeToString(scriptPubKey)
	var path walletdata.Path
	err := s.db.QueryRow(`SELECT branch, idx FROM script_index WHERE script_hex = ?`, scriptHex).
		Scan(&path.Branch, &path.Index)
	if err == sql.ErrNoRows {
		return walletdata.Path{}, false, nil
	}
	if err != nil {
		return walletdata.Path{}, false, fmt.Errorf("query derivation path: %w", err)
	}
	return path, true, nil
}

// UnblindedMap returns the full unblinded-output table.
func (s *SQLiteStore) UnblindedMap() (map[walletdata.Outpoint]walletdata.Unblinded, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT txid, vout, asset, value, abf, vbf FROM unblinded`)
	if err != nil {
		return nil, fmt.Errorf("query unblinded map: %w", err)
	}
	defer rows.Close()

	out := make(map[walletdata.Outpoint]walletdata.Unblinded)
	for rows.Next() {
		var txid, assetHex, abfHex, vbfHex string
		var vout uint32
		var value uint64
		if err := rows.Scan(&txid, &vout, &assetHex, &value, &abfHex, &vbfHex); err != nil {
			return nil, err
		}
		u, err := unblindedFromHex(assetHex, value, abfHex, vbfHex)
		if err != nil {
			return nil, fmt.Errorf("decode unblinded %s:%d: %w", txid, vout, err)
		}
		out[walletdata.Outpoint{Chain: s.chain, TxID: txid, Vout: vout}] = u
	}
	return out, rows.Err()
}

// RecordUnblinded stores the unblinded record for a sidechain outpoint. A
// no-op if a record already exists.
func (s *SQLiteStore) RecordUnblinded(op walletdata.Outpoint, u walletdata.Unblinded) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO unblinded (txid, vout, asset, value, abf, vbf)
		VALUES (?, ?, ?, ?, ?, ?)
	`, op.TxID, op.Vout, hex.EncodeToString(u.Asset[:]), u.Value, hex.EncodeToString(u.ABF[:]), hex.EncodeToString(u.VBF[:]))
	return err
}

func unblindedFromHex(assetHex string, value uint64, abfHex, vbfHex string) (walletdata.Unblinded, error) {
	var u walletdata.Unblinded
	u.Value = value
	if err := decodeFixed(u.Asset[:], assetHex); err != nil {
		return u, fmt.Errorf("asset: %w", err)
	}
	if err := decodeFixed(u.ABF[:], abfHex); err != nil {
		return u, fmt.Errorf("abf: %w", err)
	}
	if err := decodeFixed(u.VBF[:], vbfHex); err != nil {
		return u, fmt.Errorf("vbf: %w", err)
	}
	return u, nil
}

func decodeFixed(dst []byte, s string) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}

// Header returns the block header cached at height, if any.
func (s *SQLiteStore) Header(height uint32) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blobHex string
	err := s.db.QueryRow(`SELECT blob FROM headers WHERE height = ?`, height).Scan(&blobHex)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query header: %w", err)
	}
	raw, err := hex.DecodeString(blobHex)
	if err != nil {
		return nil, false, fmt.Errorf("decode header: %w", err)
	}
	return raw, true, nil
}

// Settings returns the opaque settings blob.
func (s *SQLiteStore) Settings() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readBlob(`SELECT blob FROM settings ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
}

// InsertSettings persists a new settings blob, replacing the prior one.
func (s *SQLiteStore) InsertSettings(blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO settings (id, blob, updated_at) VALUES (?, ?, ?)`,
		uuid.NewString(), hex.EncodeToString(blob), time.Now().Unix())
	return err
}

// AssetRegistry returns the cached asset-registry blob.
func (s *SQLiteStore) AssetRegistry() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readBlob(`SELECT blob FROM asset_registry_cache WHERE key = 'registry'`)
}

// AssetIcons returns the cached asset-icons blob.
func (s *SQLiteStore) AssetIcons() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readBlob(`SELECT blob FROM asset_registry_cache WHERE key = 'icons'`)
}

func (s *SQLiteStore) readBlob(query string, args ...interface{}) ([]byte, error) {
	var blobHex string
	err := s.db.QueryRow(query, args...).Scan(&blobHex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query blob: %w", err)
	}
	return hex.DecodeString(blobHex)
}

// Index returns the current value of the named monotone counter.
func (s *SQLiteStore) Index(kind walletdata.IndexKind) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value uint32
	err := s.db.QueryRow(`SELECT value FROM indices WHERE kind = ?`, string(kind)).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("query index %s: %w", kind, err)
	}
	return value, nil
}

// IncrementIndex atomically increments the named counter and returns its
// new value.
func (s *SQLiteStore) IncrementIndex(kind walletdata.IndexKind) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var value uint32
	if err := tx.QueryRow(`SELECT value FROM indices WHERE kind = ?`, string(kind)).Scan(&value); err != nil {
		return 0, fmt.Errorf("query index %s: %w", kind, err)
	}
	value++
	if _, err := tx.Exec(`UPDATE indices SET value = ? WHERE kind = ?`, value, string(kind)); err != nil {
		return 0, fmt.Errorf("update index %s: %w", kind, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit index increment: %w", err)
	}
	return value, nil
}

var _ Store = (*SQLiteStore)(nil)
