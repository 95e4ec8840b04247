// Package httpwire is the HTTP wire layer of a small web framework built on
// GoFiber: URL parsing and escaping, cookies, media types and
// Content-Disposition, streaming multipart bodies, conditional GET and HTTP
// dates. The parsers live in their own packages and depend only on the
// standard library and a few small helpers; this package wires them into a
// fiber server.
//
// # Quick Start
//
//	cfg, err := config.Load("myapp")
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger := httpwire.NewSlogAdapter(httpwire.NewLogger(cfg, nil))
//
//	app, err := httpwire.NewApplication(httpwire.ApplicationOptions{
//		Config: cfg,
//		Logger: logger,
//		RouteMountFunc: func(s *httpwire.Server) {
//			s.Get("/", homeHandler)
//			s.Post("/upload", uploadHandler, &httpwire.RouteConfig{ParseForm: true})
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	app.Run()
//
// # Handlers
//
// Handlers receive a Context embedding *fiber.Ctx:
//
//	func uploadHandler(ctx *httpwire.Context) error {
//		form, err := ctx.Form()
//		if err != nil {
//			return err
//		}
//		...
//		return ctx.Respond(resp)
//	}
//
// Errors from the parsing packages carry a kind (see package httperr) that the
// default error handler maps to 400 or 413.
//
// # Uploads
//
// Multipart bodies are read part by part. Files above the memory budget spool to
// uniquely named temporary files, which are removed when the handler returns.
// Limits come from the Config when it implements UploadConfigProvider.
package httpwire
