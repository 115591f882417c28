// Package binder populates request structs from JSON bodies, query strings,
// chi path parameters and multipart uploads.
//
// Each binder only handles its own struct tag, so several binders can be
// combined for one request type:
//
//	type UpdateProjectRequest struct {
//		ID    string   `path:"id"`
//		Title string   `json:"title"`
//		Tags  []string `json:"tags"`
//	}
//
//	r.Patch("/project/{id}", handler.Wrap(h.update,
//		handler.WithBinders[handler.Context, UpdateProjectRequest](
//			binder.Path(chi.URLParam),
//			binder.JSON(),
//		),
//	))
//
// A binder that has nothing to read returns ErrBinderNotApplicable and the
// handler wrapper moves on to the next one.
package binder
