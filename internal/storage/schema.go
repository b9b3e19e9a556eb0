package storage

const Schema = `
CREATE TABLE IF NOT EXISTS keyword_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword TEXT NOT NULL,
	keyword_type TEXT NOT NULL,
	category TEXT NOT NULL,
	used_date TEXT NOT NULL,
	use_count INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(keyword, category, used_date)
);

CREATE TABLE IF NOT EXISTS source_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	link TEXT NOT NULL UNIQUE,
	original_link TEXT,
	description TEXT,
	image_url TEXT,
	outlet TEXT,
	author TEXT,
	category TEXT NOT NULL DEFAULT 'NOT_FILTERED',
	score INTEGER NOT NULL DEFAULT 0,
	published_at DATETIME,
	stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS today_selection (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	selection_date TEXT NOT NULL UNIQUE,
	source_item_id INTEGER NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_item_id) REFERENCES source_items(id)
);

CREATE TABLE IF NOT EXISTS synthetic_content (
	source_item_id INTEGER PRIMARY KEY,
	content TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_item_id) REFERENCES source_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS detail_quizzes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_item_id INTEGER NOT NULL,
	question TEXT NOT NULL,
	option1 TEXT NOT NULL,
	option2 TEXT NOT NULL,
	option3 TEXT NOT NULL,
	correct_option TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_item_id) REFERENCES source_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS daily_quizzes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	today_selection_id INTEGER NOT NULL,
	detail_quiz_id INTEGER NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (today_selection_id) REFERENCES today_selection(id) ON DELETE CASCADE,
	FOREIGN KEY (detail_quiz_id) REFERENCES detail_quizzes(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS fact_quizzes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_item_id INTEGER NOT NULL UNIQUE,
	question TEXT NOT NULL,
	correct_answer TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (source_item_id) REFERENCES source_items(id) ON DELETE CASCADE,
	FOREIGN KEY (source_item_id) REFERENCES synthetic_content(source_item_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS members (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	exp INTEGER NOT NULL DEFAULT 0,
	level INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS answer_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id INTEGER NOT NULL,
	quiz_id INTEGER NOT NULL,
	quiz_type TEXT NOT NULL,
	answer TEXT NOT NULL,
	correct BOOLEAN NOT NULL DEFAULT 0,
	gained_exp INTEGER NOT NULL DEFAULT 0,
	submitted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(member_id, quiz_id, quiz_type),
	FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_keyword_history_used_date ON keyword_history(used_date);
CREATE INDEX IF NOT EXISTS idx_source_items_stored_at ON source_items(stored_at);
CREATE INDEX IF NOT EXISTS idx_detail_quizzes_source ON detail_quizzes(source_item_id);
CREATE INDEX IF NOT EXISTS idx_daily_quizzes_selection ON daily_quizzes(today_selection_id);
CREATE INDEX IF NOT EXISTS idx_members_exp ON members(exp DESC);
`
