package models

import "affinet/pkg/domain"

// TreeNode is one entry in a descendant-tree view. Children are bounded by
// the traversal's maxDepth; TotalDownlines is not — it counts every
// descendant regardless of how deep the rendered tree goes.
type TreeNode struct {
	UIN             domain.UIN  `json:"uin"`
	DisplayName     string      `json:"display_name"`
	Role            Role        `json:"role"`
	Level           int         `json:"level"`
	Active          bool        `json:"active"`
	DirectDownlines int         `json:"direct_downlines"`
	TotalDownlines  int         `json:"total_downlines"`
	Children        []*TreeNode `json:"children,omitempty"`
}
