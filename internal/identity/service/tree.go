package service

import (
	"context"
	"errors"

	"affinet/internal/identity/models"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/platform/sentinel"
)

// DescendantTree returns the downline tree under uin, rendered to maxDepth
// levels. TotalDownlines on every node counts the full subtree regardless of
// maxDepth. The traversal is iterative with an explicit queue; referral
// trees get wide and deep enough that recursion is not an option.
func (s *Service) DescendantTree(ctx context.Context, uin domain.UIN, maxDepth int) (*models.TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultChainDepth
	}

	start, err := s.Get(ctx, uin)
	if err != nil {
		return nil, err
	}

	// Full breadth-first sweep of the subtree. BFS order guarantees parents
	// precede children, which the two passes below rely on.
	type record struct {
		identity *models.Identity
		parent   domain.UIN
	}
	order := make([]domain.UIN, 0, 1+len(start.Downlines))
	records := map[domain.UIN]*record{start.UIN: {identity: start}}
	queue := []domain.UIN{start.UIN}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, child := range records[current].identity.Downlines {
			identity, err := s.store.FindByUIN(ctx, child)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					// Broken downline link; identities are never deleted, so
					// this is a store defect. Surface it loudly.
					return nil, dErrors.New(dErrors.CodeInvariantViolation,
						"downline "+child.String()+" of "+current.String()+" is missing")
				}
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "descendant lookup failed")
			}
			records[child] = &record{identity: identity, parent: current}
			queue = append(queue, child)
		}
	}

	// Subtree sizes in reverse BFS order: every child is processed before
	// its parent.
	sizes := make(map[domain.UIN]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		current := order[i]
		total := 0
		for _, child := range records[current].identity.Downlines {
			total += sizes[child] + 1
		}
		sizes[current] = total
	}

	// Materialize nodes down to maxDepth, again relying on BFS order so a
	// node's parent is built before the node itself.
	nodes := make(map[domain.UIN]*models.TreeNode, len(order))
	var rootNode *models.TreeNode
	for _, current := range order {
		rec := records[current]
		level := rec.identity.Depth - start.Depth
		if level > maxDepth {
			continue
		}
		node := &models.TreeNode{
			UIN:             rec.identity.UIN,
			DisplayName:     rec.identity.DisplayName,
			Role:            rec.identity.Role,
			Level:           level,
			Active:          rec.identity.Active,
			DirectDownlines: len(rec.identity.Downlines),
			TotalDownlines:  sizes[current],
		}
		nodes[current] = node
		if current == start.UIN {
			rootNode = node
			continue
		}
		if parent, ok := nodes[rec.parent]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return rootNode, nil
}
