// Package privacy provides write policies for model instances.
//
// A Policy is an ordered list of rules evaluated before every create,
// update and destroy of an instance. Each rule returns one of three
// decisions:
//
//   - Allow: permits the write and stops evaluation
//   - Deny: rejects the write and stops evaluation
//   - Skip: continues with the next rule
//
// Policies are registered on entities as model hooks:
//
//	client, err := model.New(graph, drv,
//		model.WithHooks("Book", privacy.Policy{
//			privacy.DenyIfNoViewer(),
//			privacy.HasRole("admin"),
//			privacy.IsOwner("author_id"),
//			privacy.AlwaysDenyRule(),
//		}),
//	)
//
// The viewer is carried by the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "7", Roles: []string{"editor"}})
//	err = book.Save(ctx)
//	if errors.Is(err, privacy.Deny) {
//		// rejected, nothing was written
//	}
//
// BulkCreate evaluates the policy for every instance. The bulk Update and
// Destroy of a Model run no hooks and so bypass policies. A decision
// attached with DecisionContext overrides every policy, e.g. for
// internal jobs:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
package privacy
