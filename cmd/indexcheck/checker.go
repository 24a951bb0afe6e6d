package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"indexstore/internal/config"
	"indexstore/internal/field"
	"indexstore/internal/rawdb"
	"indexstore/internal/schema"
	"indexstore/internal/tree"
)

const progressEvery = 1000

type Document struct {
	tree.Node
}

type Section struct {
	tree.Node
}

type Span struct {
	tree.Node
}

// checker builds a document/section/span schema over the tree relation and
// keeps inserting, verifying and deleting small trees until stopped.
type checker struct {
	conf  *config.Config
	store *rawdb.Store
	sch   *tree.Schema
	reg   *schema.Registry

	docDef     *schema.StructDef
	sectionDef *schema.StructDef
	spanDef    *schema.StructDef

	docName      *field.String
	sectionTitle *field.String
	spanOffset   *field.Int

	sugar *zap.SugaredLogger
}

func newChecker(conf *config.Config, logger *zap.Logger) (*checker, error) {
	store, err := rawdb.New(conf, logger)
	if err != nil {
		return nil, err
	}

	sch := tree.NewSchema()

	c := &checker{
		conf:  conf,
		store: store,
		sch:   sch,
		sugar: logger.Sugar(),
	}

	c.docDef = schema.Create("Document", sch.Def, func(s *rawdb.Store, addr rawdb.Address) schema.Record {
		return Document{sch.Handle(s, addr)}
	})
	c.docName = c.docDef.AddString()
	c.docDef.Done()

	c.sectionDef = schema.Create("Section", sch.Def, func(s *rawdb.Store, addr rawdb.Address) schema.Record {
		return Section{sch.Handle(s, addr)}
	})
	c.sectionTitle = c.sectionDef.AddString()
	c.sectionDef.Done()

	c.spanDef = schema.Create("Span", sch.Def, func(s *rawdb.Store, addr rawdb.Address) schema.Record {
		return Span{sch.Handle(s, addr)}
	})
	c.spanOffset = c.spanDef.AddInt()
	c.spanDef.Done()

	c.reg = schema.NewRegistry(sch.TypeTag, logger)
	c.reg.Register(1, c.docDef)
	c.reg.Register(2, c.sectionDef)
	c.reg.Register(3, c.spanDef)
	c.reg.Freeze()

	return c, nil
}

// insertAndVerify builds one document tree, checks the ancestor walks and
// tears the tree down again, leaf records first.
func (c *checker) insertAndVerify(i int) error {
	s := c.store

	doc := c.sch.NewNode(s, c.reg, c.docDef, 0)
	c.docName.Put(s, doc.Address(), "doc"+strconv.Itoa(i))

	section := c.sch.NewNode(s, c.reg, c.sectionDef, doc.Address())
	c.sectionTitle.Put(s, section.Address(), "section"+strconv.Itoa(i))

	span := c.sch.NewNode(s, c.reg, c.spanDef, section.Address())
	c.spanOffset.Put(s, span.Address(), int32(i))

	foundDoc, ok, err := tree.AncestorOfType[Document](c.sch, c.reg, s, span.Address(), c.docDef)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("document ancestor not found")
	}
	if foundDoc.Address() != doc.Address() {
		return fmt.Errorf("ancestor mismatch: want %d got %d", doc.Address(), foundDoc.Address())
	}
	if got := c.docName.Get(s, foundDoc.Address()); got != "doc"+strconv.Itoa(i) {
		return fmt.Errorf("document name mismatch: %q", got)
	}

	// no span above a root document
	if _, ok, err = tree.AncestorOfType[Span](c.sch, c.reg, s, doc.Address(), c.spanDef); err != nil {
		return err
	} else if ok {
		return errors.New("unexpected span ancestor above a root")
	}

	if n := len(c.sch.ChildrenOf(s, doc.Address())); n != 1 {
		return fmt.Errorf("document has %d children, want 1", n)
	}

	for _, addr := range []rawdb.Address{span.Address(), section.Address(), doc.Address()} {
		if err := c.reg.Delete(s, addr); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) run(ctx context.Context) error {
	// interval 0 disables periodic saves; a nil channel never fires
	var saveCh <-chan time.Time
	if c.conf.StoreInterval > 0 {
		saveTicker := time.NewTicker(c.conf.StoreInterval)
		defer saveTicker.Stop()
		saveCh = saveTicker.C
	}

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			c.sugar.Infow("checker stopped", "iterations", i, "store size", c.store.Size())
			return c.store.SaveToDisk()
		case <-saveCh:
			if err := c.store.SaveToDisk(); err != nil {
				c.sugar.Errorw("save", "err", err)
			}
		default:
			if err := c.insertAndVerify(i); err != nil {
				c.sugar.Errorw("check failed", "iteration", i, "err", err)
				return err
			}
			if i%progressEvery == 0 {
				c.sugar.Debugw("progress", "iteration", i, "store size", c.store.Size())
			}
		}
	}
}
