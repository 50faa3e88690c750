package mysql

const insertAuditSQL = `
INSERT INTO rule_audit
  (id, hotel_id, action, outcome, detail, payload, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

// Newest first; served by idx_rule_audit_hotel_created.
const listAuditSQL = `
SELECT id, hotel_id, action, outcome, detail, payload, created_at
FROM rule_audit
WHERE hotel_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
