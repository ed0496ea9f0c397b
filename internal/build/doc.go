// Package build provides the canonical build execution pipeline for postbuilder.
//
// DefaultBuildService runs four strictly sequential stages and stops at the
// first error, returning the failing component's classified error unchanged:
//
//	sync_assets    → one assets.Synchronizer.Sync per configured figure collection
//	discover_posts → <blog.dir>/*/<index_document>, sorted
//	render_posts   → post.Renderer.Render for each post
//	write_index    → optional landing page listing every post
package build
