package mysql

const upsertApprovalSQL = `
INSERT INTO review_approvals (review_id, approved)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE
  approved   = VALUES(approved),
  updated_at = CURRENT_TIMESTAMP
`

const getApprovalSQL = `
SELECT approved FROM review_approvals WHERE review_id = ?
`

const listApprovalsSQL = `
SELECT review_id, approved FROM review_approvals ORDER BY review_id
`
