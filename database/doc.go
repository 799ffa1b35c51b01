// Package database wraps GORM with connection retry, pooling, a GORM logger
// that writes through the service logger, context-carried transactions and
// a lifecycle component.
//
// Two drivers are supported: postgres (production, via gorm.io/driver/postgres)
// and sqlite (test environment and unit tests, via gorm.io/driver/sqlite).
//
// Stores never hold a *gorm.DB for a request. They call db.Conn(ctx), which
// returns the transaction opened by WithTransaction when one is carried by
// ctx and a plain session otherwise, so a service can compose several store
// calls into one unit of work:
//
//	err := db.WithTransaction(ctx, func(ctx context.Context) error {
//	    if err := identities.BindMethod(ctx, id, method); err != nil {
//	        return err
//	    }
//	    return passwords.Insert(ctx, record)
//	})
package database
