// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"errors"
	"fmt"

	"github.com/diffeo/go-couchdb/couchclient"
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/urfave/cli"
)

// emit prints v as indented JSON.
func (ctl *controller) emit(v interface{}) error {
	out, err := couchdata.EncodeJSONIndent(v)
	if err != nil {
		return err
	}
	_, err = ctl.Out.Write(append(out, '\n'))
	return err
}

// report prints a result and converts it to the command's error.
func (ctl *controller) report(r couchclient.Result) error {
	if err := ctl.emit(r.Value()); err != nil {
		return err
	}
	if f := r.Failure(); f != nil {
		return f
	}
	if remote := r.RemoteError(); remote != nil {
		return fmt.Errorf("couchdb: %s", remote.String())
	}
	return nil
}

// aggregate is anything that renders and fails as a whole, such as
// couchclient.BatchResult.
type aggregate interface {
	Value() interface{}
	Err() error
}

func (ctl *controller) reportAll(a aggregate) error {
	if err := ctl.emit(a.Value()); err != nil {
		return err
	}
	return a.Err()
}

// resultAction adapts a function producing one result to a command
// action.
func (ctl *controller) resultAction(f func(c *cli.Context) couchclient.Result) func(*cli.Context) error {
	return func(c *cli.Context) error {
		return ctl.report(f(c))
	}
}

// needArgs checks the number of positional arguments.
func needArgs(c *cli.Context, min int) error {
	if c.NArg() < min {
		return errors.New("usage: " + c.App.Name + " " + c.Command.FullName() + " " + c.Command.ArgsUsage)
	}
	return nil
}

// parseObject decodes a JSON object argument.
func parseObject(arg string) (map[string]interface{}, error) {
	v, err := couchdata.DecodeJSON([]byte(arg))
	if err != nil {
		return nil, err
	}
	obj, isMap := v.(map[string]interface{})
	if !isMap {
		return nil, errors.New("expected a JSON object")
	}
	return obj, nil
}
