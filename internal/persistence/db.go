// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/agent-world/internal/agents"
	"github.com/talgya/agent-world/internal/chain"
	"github.com/talgya/agent-world/internal/economy"
	"github.com/talgya/agent-world/internal/social"
	"github.com/talgya/agent-world/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		emoji TEXT NOT NULL,
		color TEXT NOT NULL,
		strategy TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		health INTEGER NOT NULL,
		balance INTEGER NOT NULL,
		wealth INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		territory INTEGER NOT NULL,
		buildings INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		idle INTEGER NOT NULL,
		builtin INTEGER NOT NULL,
		alliance_id TEXT,
		wallet_address TEXT,
		api_key TEXT NOT NULL,
		webhook_url TEXT,
		llm_key TEXT,
		created_tick INTEGER NOT NULL,
		inventory_json TEXT NOT NULL,
		earned INTEGER NOT NULL DEFAULT 0,
		spent INTEGER NOT NULL DEFAULT 0,
		breakdown_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		resource INTEGER NOT NULL,
		resource_amount INTEGER NOT NULL,
		building INTEGER NOT NULL,
		building_owner TEXT,
		owner_id TEXT,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS alliances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		treasury INTEGER NOT NULL,
		created_tick INTEGER NOT NULL,
		members_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alliance_proposals (
		id TEXT PRIMARY KEY,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		created_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balance_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		balance_after INTEGER NOT NULL,
		tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS earnings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		amount INTEGER NOT NULL,
		tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		agent_id TEXT,
		detail TEXT NOT NULL,
		tick INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		agent_id TEXT,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS land_listings (
		id TEXT PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		seller_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		created_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_prices (
		resource TEXT PRIMARY KEY,
		price REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_agent ON balance_history(agent_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_agent ON earnings(agent_id);
	CREATE INDEX IF NOT EXISTS idx_activities_tick ON activities(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveAgents writes all agents to the database (full replace). Ledger
// lifetime stats ride along so a restart keeps ROI exact.
func (db *DB) SaveAgents(list []*agents.Agent, ledger *economy.Ledger) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, name, emoji, color, strategy, x, y, health,
		 balance, wealth, kills, deaths, territory, buildings,
		 alive, idle, builtin, alliance_id, wallet_address,
		 api_key, webhook_url, llm_key, created_tick, inventory_json,
		 earned, spent, breakdown_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range list {
		invJSON, _ := json.Marshal(a.Inventory)
		st := ledger.StatsFor(a.ID)
		breakdownJSON, _ := json.Marshal(st.Breakdown)

		_, err := stmt.Exec(
			a.ID, a.Name, a.Emoji, a.Color, string(a.Strategy),
			a.X, a.Y, a.Health,
			a.Balance, a.Wealth, a.Kills, a.Deaths, a.Territory, a.Buildings,
			boolInt(a.Alive), boolInt(a.Idle), boolInt(a.Builtin),
			a.AllianceID, a.WalletAddress,
			a.APIKey, a.WebhookURL, a.LLMKey, a.CreatedTick, string(invJSON),
			st.Earned, st.Spent, string(breakdownJSON),
		)
		if err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

type agentRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Emoji         string         `db:"emoji"`
	Color         string         `db:"color"`
	Strategy      string         `db:"strategy"`
	X             int            `db:"x"`
	Y             int            `db:"y"`
	Health        int            `db:"health"`
	Balance       int            `db:"balance"`
	Wealth        int            `db:"wealth"`
	Kills         int            `db:"kills"`
	Deaths        int            `db:"deaths"`
	Territory     int            `db:"territory"`
	Buildings     int            `db:"buildings"`
	Alive         int            `db:"alive"`
	Idle          int            `db:"idle"`
	Builtin       int            `db:"builtin"`
	AllianceID    sql.NullString `db:"alliance_id"`
	WalletAddress sql.NullString `db:"wallet_address"`
	APIKey        string         `db:"api_key"`
	WebhookURL    sql.NullString `db:"webhook_url"`
	LLMKey        sql.NullString `db:"llm_key"`
	CreatedTick   uint64         `db:"created_tick"`
	InventoryJSON string         `db:"inventory_json"`
	Earned        int            `db:"earned"`
	Spent         int            `db:"spent"`
	BreakdownJSON string         `db:"breakdown_json"`
}

// LoadAgents restores every persisted agent into the registry and the
// ledger.
func (db *DB) LoadAgents(reg *agents.Registry, ledger *economy.Ledger) (int, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents"); err != nil {
		return 0, err
	}

	for _, r := range rows {
		a := &agents.Agent{
			ID: r.ID, Name: r.Name, Emoji: r.Emoji, Color: r.Color,
			Strategy: agents.Strategy(r.Strategy),
			X:        r.X, Y: r.Y,
			Health:  r.Health,
			Balance: r.Balance, Wealth: r.Wealth,
			Kills: r.Kills, Deaths: r.Deaths,
			Territory: r.Territory, Buildings: r.Buildings,
			Alive: r.Alive == 1, Idle: r.Idle == 1, Builtin: r.Builtin == 1,
			AllianceID:    r.AllianceID.String,
			WalletAddress: r.WalletAddress.String,
			APIKey:        r.APIKey,
			WebhookURL:    r.WebhookURL.String,
			LLMKey:        r.LLMKey.String,
			CreatedTick:   r.CreatedTick,
		}
		if err := json.Unmarshal([]byte(r.InventoryJSON), &a.Inventory); err != nil {
			return 0, fmt.Errorf("agent %s inventory: %w", r.ID, err)
		}
		var breakdown map[string]int
		if err := json.Unmarshal([]byte(r.BreakdownJSON), &breakdown); err != nil {
			breakdown = map[string]int{}
		}
		reg.Restore(a)
		ledger.RestoreStats(a.ID, r.Earned, r.Spent, breakdown)
	}
	return len(rows), nil
}

// SaveTiles stores only the tiles that diverge from the generated
// baseline: deposits, buildings, and claims. The biome layer is always
// regenerated from the seed.
func (db *DB) SaveTiles(m *world.Map) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tiles"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO tiles
		(x, y, resource, resource_amount, building, building_owner, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range m.Tiles {
		t := &m.Tiles[i]
		if t.Resource == world.ResourceNone && t.Building == world.BuildingNone && t.OwnerID == "" {
			continue
		}
		if _, err := stmt.Exec(t.X, t.Y, t.Resource, t.ResourceAmount,
			t.Building, t.BuildingOwner, t.OwnerID); err != nil {
			return fmt.Errorf("insert tile (%d,%d): %w", t.X, t.Y, err)
		}
	}

	return tx.Commit()
}

type tileRow struct {
	X              int            `db:"x"`
	Y              int            `db:"y"`
	Resource       int            `db:"resource"`
	ResourceAmount int            `db:"resource_amount"`
	Building       int            `db:"building"`
	BuildingOwner  sql.NullString `db:"building_owner"`
	OwnerID        sql.NullString `db:"owner_id"`
}

// LoadTiles applies persisted tile state over a freshly generated map.
// Tiles absent from the table keep their generated deposits, so this
// runs only when the table has rows (an existing save).
func (db *DB) LoadTiles(m *world.Map) (int, error) {
	var rows []tileRow
	if err := db.conn.Select(&rows, "SELECT * FROM tiles"); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	// A saved world's deposit layer is authoritative: clear the
	// regenerated deposits, then lay the saved ones back down.
	for i := range m.Tiles {
		m.Tiles[i].Resource = world.ResourceNone
		m.Tiles[i].ResourceAmount = 0
	}
	for _, r := range rows {
		t := m.At(r.X, r.Y)
		if t == nil {
			continue
		}
		t.Resource = world.Resource(r.Resource)
		t.ResourceAmount = r.ResourceAmount
		t.Building = world.Building(r.Building)
		t.BuildingOwner = r.BuildingOwner.String
		t.OwnerID = r.OwnerID.String
	}
	return len(rows), nil
}

// SaveAlliances writes all alliances (full replace).
func (db *DB) SaveAlliances(list []*social.Alliance) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM alliances"); err != nil {
		return err
	}

	for _, al := range list {
		membersJSON, _ := json.Marshal(al.Members)
		_, err := tx.Exec(`INSERT INTO alliances (id, name, treasury, created_tick, members_json)
			VALUES (?, ?, ?, ?, ?)`,
			al.ID, al.Name, al.Treasury, al.CreatedTick, string(membersJSON))
		if err != nil {
			return fmt.Errorf("insert alliance %s: %w", al.ID, err)
		}
	}
	return tx.Commit()
}

// LoadAlliances restores persisted alliances.
func (db *DB) LoadAlliances(store *social.Alliances) (int, error) {
	var rows []struct {
		ID          string `db:"id"`
		Name        string `db:"name"`
		Treasury    int    `db:"treasury"`
		CreatedTick uint64 `db:"created_tick"`
		MembersJSON string `db:"members_json"`
	}
	if err := db.conn.Select(&rows, "SELECT * FROM alliances"); err != nil {
		return 0, err
	}
	for _, r := range rows {
		al := &social.Alliance{
			ID: r.ID, Name: r.Name,
			Treasury: r.Treasury, CreatedTick: r.CreatedTick,
		}
		if err := json.Unmarshal([]byte(r.MembersJSON), &al.Members); err != nil {
			return 0, fmt.Errorf("alliance %s members: %w", r.ID, err)
		}
		store.Restore(al)
	}
	return len(rows), nil
}

// SaveProposals writes every open alliance proposal (full replace).
func (db *DB) SaveProposals(list []*social.Proposal) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM alliance_proposals"); err != nil {
		return err
	}

	for _, p := range list {
		_, err := tx.Exec(`INSERT INTO alliance_proposals (id, from_id, to_id, created_tick)
			VALUES (?, ?, ?, ?)`,
			p.ID, p.FromID, p.ToID, p.CreatedTick)
		if err != nil {
			return fmt.Errorf("insert proposal %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// LoadProposals restores open alliance proposals.
func (db *DB) LoadProposals(store *social.Alliances) (int, error) {
	var rows []struct {
		ID          string `db:"id"`
		FromID      string `db:"from_id"`
		ToID        string `db:"to_id"`
		CreatedTick uint64 `db:"created_tick"`
	}
	if err := db.conn.Select(&rows, "SELECT * FROM alliance_proposals"); err != nil {
		return 0, err
	}
	for _, r := range rows {
		store.RestoreProposal(&social.Proposal{
			ID: r.ID, FromID: r.FromID, ToID: r.ToID, CreatedTick: r.CreatedTick,
		})
	}
	return len(rows), nil
}

// RecordBalance appends one ledger entry, plus an earnings row for
// credits. Wired as the ledger recorder.
func (db *DB) RecordBalance(e economy.Entry) {
	_, err := db.conn.Exec(`INSERT INTO balance_history
		(agent_id, delta, reason, balance_after, tick) VALUES (?, ?, ?, ?, ?)`,
		e.AgentID, e.Delta, e.Reason, e.BalanceAfter, e.Tick)
	if err != nil {
		slog.Error("record balance", "error", err)
		return
	}
	if e.Delta > 0 {
		_, err = db.conn.Exec(`INSERT INTO earnings (agent_id, reason, amount, tick)
			VALUES (?, ?, ?, ?)`, e.AgentID, e.Reason, e.Delta, e.Tick)
		if err != nil {
			slog.Error("record earning", "error", err)
		}
	}
}

// SaveTransaction persists one external-ledger submission. Wired as
// the chain worker's local recorder.
func (db *DB) SaveTransaction(t chain.Tx) {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO transactions
		(id, kind, agent_id, detail, tick, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Kind, t.AgentID, t.Detail, t.Tick, t.CreatedAt, t.Status)
	if err != nil {
		slog.Error("save transaction", "error", err)
	}
}

// RecentTransactions returns the latest external-ledger submissions.
func (db *DB) RecentTransactions(limit int) ([]chain.Tx, error) {
	var txs []chain.Tx
	err := db.conn.Select(&txs,
		"SELECT * FROM transactions ORDER BY created_at DESC LIMIT ?", limit)
	return txs, err
}

// Activity is one persisted feed entry.
type Activity struct {
	Tick    uint64 `db:"tick" json:"tick"`
	AgentID string `db:"agent_id" json:"agent_id"`
	Kind    string `db:"kind" json:"kind"`
	Message string `db:"message" json:"message"`
	X       int    `db:"x" json:"x"`
	Y       int    `db:"y" json:"y"`
}

// SaveActivities appends feed entries.
func (db *DB) SaveActivities(list []Activity) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, a := range list {
		_, err := tx.Exec(`INSERT INTO activities (tick, agent_id, kind, message, x, y)
			VALUES (?, ?, ?, ?, ?, ?)`, a.Tick, a.AgentID, a.Kind, a.Message, a.X, a.Y)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentActivities returns the newest feed entries.
func (db *DB) RecentActivities(limit int) ([]Activity, error) {
	var list []Activity
	err := db.conn.Select(&list,
		"SELECT tick, agent_id, kind, message, x, y FROM activities ORDER BY id DESC LIMIT ?",
		limit)
	return list, err
}

// SaveListings writes the open land market (full replace).
func (db *DB) SaveListings(list []*economy.Listing) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM land_listings"); err != nil {
		return err
	}
	for _, l := range list {
		_, err := tx.Exec(`INSERT INTO land_listings (id, x, y, seller_id, price, created_tick)
			VALUES (?, ?, ?, ?, ?, ?)`, l.ID, l.X, l.Y, l.SellerID, l.Price, l.CreatedTick)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadListings restores the open land market.
func (db *DB) LoadListings(store *economy.Listings) (int, error) {
	var rows []struct {
		ID          string `db:"id"`
		X           int    `db:"x"`
		Y           int    `db:"y"`
		SellerID    string `db:"seller_id"`
		Price       int    `db:"price"`
		CreatedTick uint64 `db:"created_tick"`
	}
	if err := db.conn.Select(&rows, "SELECT * FROM land_listings"); err != nil {
		return 0, err
	}
	for _, r := range rows {
		store.List(r.X, r.Y, r.SellerID, r.Price, r.CreatedTick)
	}
	return len(rows), nil
}

// SaveMarket stores current quotes.
func (db *DB) SaveMarket(quotes []economy.Quote) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range quotes {
		_, err := tx.Exec(`INSERT OR REPLACE INTO market_prices (resource, price) VALUES (?, ?)`,
			q.Resource.String(), q.Price)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadMarket restores persisted prices.
func (db *DB) LoadMarket(m *economy.Market) error {
	var rows []struct {
		Resource string  `db:"resource"`
		Price    float64 `db:"price"`
	}
	if err := db.conn.Select(&rows, "SELECT * FROM market_prices"); err != nil {
		return err
	}
	for _, r := range rows {
		m.SetPrice(world.ParseResource(r.Resource), r.Price)
	}
	return nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. Missing keys return "".
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
