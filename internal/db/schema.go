package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS pinned ON conversation TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user ON conversation FIELDS user_id;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    -- Ids are client-generated UUIDs; ordering is append-only by created_at
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS model ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS usage ON message TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation_id;

    -- ==========================================================================
    -- NOTE TABLE
    -- ==========================================================================
    -- conversation_id is a soft reference: conversation deletion must not cascade
    DEFINE TABLE IF NOT EXISTS note SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON note TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON note TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON note TYPE string;
    DEFINE FIELD IF NOT EXISTS conversation_id ON note TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON note TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON note TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS note_user ON note FIELDS user_id;

    -- ==========================================================================
    -- ASSIGNMENT TABLE (teacher-assigned quizzes)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS assignment SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS student_id ON assignment TYPE string;
    DEFINE FIELD IF NOT EXISTS topic ON assignment TYPE string;
    DEFINE FIELD IF NOT EXISTS questions ON assignment TYPE array<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS questions.* ON assignment TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS completed ON assignment TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS score ON assignment TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON assignment TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS assignment_student ON assignment FIELDS student_id;

    -- ==========================================================================
    -- QUIZ_RESULT TABLE (self-study results, write-only telemetry)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS quiz_result SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON quiz_result TYPE string;
    DEFINE FIELD IF NOT EXISTS conversation_id ON quiz_result TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS score ON quiz_result TYPE int;
    DEFINE FIELD IF NOT EXISTS total_questions ON quiz_result TYPE int;
    DEFINE FIELD IF NOT EXISTS created_at ON quiz_result TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- TOKEN_USAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS token_usage SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS message_id ON token_usage TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON token_usage TYPE string;
    DEFINE FIELD IF NOT EXISTS model ON token_usage TYPE string;
    DEFINE FIELD IF NOT EXISTS input_tokens ON token_usage TYPE int;
    DEFINE FIELD IF NOT EXISTS output_tokens ON token_usage TYPE int;
    DEFINE FIELD IF NOT EXISTS total_tokens ON token_usage TYPE int;
    DEFINE FIELD IF NOT EXISTS recorded_at ON token_usage TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS token_usage_message ON token_usage FIELDS message_id;

    -- ==========================================================================
    -- PROFILE TABLE (personalization)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS profile SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON profile TYPE string;
    DEFINE FIELD IF NOT EXISTS instruction ON profile TYPE string;
    DEFINE FIELD IF NOT EXISTS active ON profile TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS updated_at ON profile TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS profile_user ON profile FIELDS user_id UNIQUE;

    -- ==========================================================================
    -- SETTING TABLE (named slots: "api", "ui")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS setting SCHEMALESS;
`
